package store

import (
	"context"
	"errors"
	"os"
	"time"

	"searoute/grid_world"
	"searoute/reinforcement"
	"searoute/weather"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when no route is stored under an id.
var ErrNotFound = errors.New("not found")

// Record is a computed route together with the request that produced it.
type Record struct {
	ID        string                     `json:"id"`
	CreatedAt time.Time                  `json:"createdAt"`
	Start     grid_world.Position        `json:"start"`
	End       grid_world.Position        `json:"end"`
	Episodes  int                        `json:"episodes"`
	Route     reinforcement.Route        `json:"route"`
	Weather   []weather.Sample           `json:"weather"`
	Summary   reinforcement.RouteSummary `json:"summary"`
	// DistanceKm is the great-circle length of the route.
	DistanceKm float64               `json:"distanceKm"`
	Voyage     reinforcement.Voyage `json:"voyage"`
}

// RouteStore is the persistence interface used by the server.
type RouteStore interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the most recent records first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// FromEnv selects a store like the deployment does: Postgres when DATABASE_URL is set, else
// Redis when REDIS_URL is set, else memory.
func FromEnv(ctx context.Context, logger logrus.FieldLogger, ttl time.Duration) (RouteStore, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := NewPostgres(dsn)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("using postgres route store")
		return pg, nil
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		rs, err := NewRedis(url, ttl)
		if err != nil {
			return nil, err
		}
		logger.WithField("ttl", ttl).Info("using redis route store")
		return rs.WithLogger(logger), nil
	}
	logger.Info("using in-memory route store")
	return NewMemory(), nil
}
