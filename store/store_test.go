package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"searoute/grid_world"
	"searoute/reinforcement"
	"searoute/weather"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
)

func newRecord(created time.Time) Record {
	return Record{
		ID:        uuid.NewString(),
		CreatedAt: created.UTC().Truncate(time.Millisecond),
		Start:     grid_world.Position{Lat: 0, Lon: -50},
		End:       grid_world.Position{Lat: 30, Lon: 30},
		Episodes:  1000,
		Route: reinforcement.Route{
			Positions: []grid_world.Position{{Lat: -65, Lon: -162}, {Lat: -66, Lon: -162}},
			Reached:   false,
		},
		Weather: []weather.Sample{{WaveHeight: 1.5, WindSpeed: 12}, {WaveHeight: 6.25, WindSpeed: 3}},
		Summary: reinforcement.RouteSummary{
			MeanWaveHeight: 3.875, MaxWaveHeight: 6.25, MeanWindSpeed: 7.5, MaxWindSpeed: 12, UnsafeSteps: 1,
		},
		DistanceKm: 111.19,
		Voyage:     reinforcement.Voyage{SpeedKnots: 16, DistanceNm: 60.04, Hours: 3.75, FuelTons: 3.0},
	}
}

// routeStoreContract exercises the behavior every RouteStore must share.
func routeStoreContract(s RouteStore) {
	ctx := context.Background()
	base := time.Now()

	Convey("A saved record reads back intact", func() {
		rec := newRecord(base)
		So(s.Save(ctx, rec), ShouldBeNil)
		got, err := s.Get(ctx, rec.ID)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, rec)
	})

	Convey("Unknown ids are not found", func() {
		_, err := s.Get(ctx, uuid.NewString())
		So(err, ShouldEqual, ErrNotFound)
	})

	Convey("Saving an id twice overwrites it", func() {
		rec := newRecord(base)
		So(s.Save(ctx, rec), ShouldBeNil)
		rec.Route.Reached = true
		So(s.Save(ctx, rec), ShouldBeNil)
		got, err := s.Get(ctx, rec.ID)
		So(err, ShouldBeNil)
		So(got.Route.Reached, ShouldBeTrue)
	})

	Convey("List returns the newest records first", func() {
		var ids []string
		for i := 0; i < 3; i++ {
			rec := newRecord(base.Add(time.Duration(i+1) * 10 * time.Millisecond))
			So(s.Save(ctx, rec), ShouldBeNil)
			ids = append(ids, rec.ID)
		}
		recs, err := s.List(ctx, 2)
		So(err, ShouldBeNil)
		So(len(recs), ShouldEqual, 2)
		So(recs[0].ID, ShouldEqual, ids[2])
		So(recs[1].ID, ShouldEqual, ids[1])
	})
}

func TestMemory(t *testing.T) {
	Convey("Given a memory store", t, func() {
		s := NewMemory()
		routeStoreContract(s)

		Convey("A non-positive limit lists everything", func() {
			for i := 0; i < 4; i++ {
				So(s.Save(context.Background(), newRecord(time.Now())), ShouldBeNil)
			}
			recs, err := s.List(context.Background(), 0)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 4)
		})
	})
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	Convey("Given a redis store", t, func() {
		s, err := NewRedis(url, time.Minute)
		So(err, ShouldBeNil)
		Reset(func() { s.Close() })
		routeStoreContract(s)

		Convey("Expired records are pruned and backfilled from older ones", func() {
			ctx := context.Background()
			base := time.Now().Add(time.Second)
			var ids []string
			for i := 0; i < 3; i++ {
				rec := newRecord(base.Add(time.Duration(i) * 10 * time.Millisecond))
				So(s.Save(ctx, rec), ShouldBeNil)
				ids = append(ids, rec.ID)
			}
			So(s.rdb.Del(ctx, s.key(ids[1])).Err(), ShouldBeNil)

			recs, err := s.List(ctx, 2)
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].ID, ShouldEqual, ids[2])
			So(recs[1].ID, ShouldEqual, ids[0])

			_, err = s.rdb.ZScore(ctx, recentKey, ids[1]).Result()
			So(err, ShouldEqual, redis.Nil)
		})
	})
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	Convey("Given a migrated postgres store", t, func() {
		s, err := NewPostgres(dsn)
		So(err, ShouldBeNil)
		So(s.Migrate(context.Background()), ShouldBeNil)
		Reset(func() { s.Close() })
		routeStoreContract(s)
	})
}

func TestFromEnv(t *testing.T) {
	Convey("Without database urls the memory store is selected", t, func() {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "")
		s, err := FromEnv(context.Background(), discardLogger(), time.Hour)
		So(err, ShouldBeNil)
		So(fmt.Sprintf("%T", s), ShouldEqual, "*store.Memory")
	})

	Convey("A malformed redis url is an error", t, func() {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("REDIS_URL", "not a url")
		_, err := FromEnv(context.Background(), discardLogger(), time.Hour)
		So(err, ShouldNotBeNil)
	})
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
