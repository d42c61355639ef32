package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const recentKey = "searoute:routes"

// Redis stores records as JSON values with an expiry, indexed by creation time in a sorted set.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewRedis connects to the url, e.g. redis://localhost:6379/0. A zero ttl keeps records forever.
func NewRedis(url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Redis{rdb: redis.NewClient(opt), ttl: ttl, logger: logrus.StandardLogger()}, nil
}

// WithLogger sets the logger for index maintenance warnings.
func (r *Redis) WithLogger(logger logrus.FieldLogger) *Redis {
	r.logger = logger
	return r
}

func (r *Redis) key(id string) string { return "searoute:route:" + id }

func (r *Redis) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(rec.ID), data, r.ttl)
		pipe.ZAdd(ctx, recentKey, redis.Z{Score: float64(rec.CreatedAt.UnixNano()), Member: rec.ID})
		return nil
	})
	return err
}

func (r *Redis) Get(ctx context.Context, id string) (Record, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding route %s: %w", id, err)
	}
	return rec, nil
}

// List walks the index newest first, pruning ids whose records have expired. Pruned ids are
// backfilled from further down the index until limit records are found or the index runs out.
func (r *Redis) List(ctx context.Context, limit int) ([]Record, error) {
	out := []Record{}
	var offset int64
	for {
		stop := int64(-1)
		if limit > 0 {
			stop = offset + int64(limit-len(out)) - 1
		}
		ids, err := r.rdb.ZRevRange(ctx, recentKey, offset, stop).Result()
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return out, nil
		}

		var expired []any
		for _, id := range ids {
			rec, err := r.Get(ctx, id)
			if errors.Is(err, ErrNotFound) {
				expired = append(expired, id)
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}

		var removed int64
		if len(expired) > 0 {
			if removed, err = r.rdb.ZRem(ctx, recentKey, expired...).Result(); err != nil {
				r.logger.WithError(err).WithField("ids", len(expired)).Warn("pruning expired route ids")
			}
		}
		if limit <= 0 || len(out) >= limit {
			return out, nil
		}
		// Removed ids no longer occupy ranks.
		offset += int64(len(ids)) - removed
	}
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
