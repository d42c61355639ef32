package server

import (
	"context"
	"strconv"
	"time"

	"searoute/grid_world"
	"searoute/metrics"
	"searoute/reinforcement"
	"searoute/store"
	"searoute/weather"

	"github.com/google/uuid"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/sirupsen/logrus"
)

// ProgressEvent is one episode's stats, tagged with the route job it belongs to.
type ProgressEvent struct {
	JobID string `json:"jobId"`
	reinforcement.EpisodeStats
}

// routeJob is one route computation.
type routeJob struct {
	id       string
	start    grid_world.Position
	end      grid_world.Position
	episodes int
	seed     int64
	// weatherSeed, when set, selects a private field instead of the shared one.
	weatherSeed int64
}

func newRouteJob(start, end grid_world.Position, episodes int, seed int64) routeJob {
	return routeJob{
		id:       uuid.NewString(),
		start:    start,
		end:      end,
		episodes: episodes,
		seed:     seed,
	}
}

// computeRoute trains on a clone of the shared field, extracts the greedy route and predicts the
// weather along it, then installs the evolved clone as the shared field. A job with its own
// weather seed trains on a private field and leaves the shared one as it was.
func (s *Server) computeRoute(ctx context.Context, job routeJob) (store.Record, error) {
	s.status.active.Add(1)
	defer s.status.active.Done()
	s.status.running.Add(1)
	defer s.status.running.Add(-1)

	params := s.opts.Params
	if job.seed != 0 {
		params.Seed = job.seed
	}

	ctx, cancel, err := s.trainingContext(ctx)
	if err != nil {
		return store.Record{}, err
	}
	defer cancel()

	log := s.logger.WithField("job", job.id)
	log.WithFields(logrus.Fields{
		"start":    job.start.String(),
		"end":      job.end.String(),
		"episodes": job.episodes,
	}).Info("training started")

	shared := job.weatherSeed == 0
	var field *weather.Field
	if shared {
		field = s.cloneField()
	} else {
		field = weather.NewField(s.codec, params.WeatherConfig(job.weatherSeed))
	}
	stats, finish := s.progressPipeline(job.id)
	learner := reinforcement.NewLearner(params, s.codec, field).
		WithProgress(func(_ context.Context, st reinforcement.EpisodeStats) {
			s.status.record(st)
			select {
			case stats <- st:
			case <-s.done:
			}
		})

	began := time.Now()
	q, err := learner.Train(ctx, job.start, job.end, job.episodes)
	finish()
	metrics.TrainingDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		log.WithError(err).Warn("training abandoned")
		return store.Record{}, err
	}
	if shared {
		s.replaceField(field)
	}

	route := reinforcement.NewExtractor(params, s.codec).Extract(q, job.start, job.end)
	samples := reinforcement.RouteWeather(field, route)
	metrics.RouteArrivals.WithLabelValues(strconv.FormatBool(route.Reached)).Inc()

	rec := store.Record{
		ID:         job.id,
		CreatedAt:  time.Now().UTC(),
		Start:      job.start,
		End:        job.end,
		Episodes:   job.episodes,
		Route:      route,
		Weather:    samples,
		Summary:    reinforcement.Summarize(samples, params.Limits()),
		DistanceKm: route.DistanceKm(),
		Voyage:     params.Voyage(route),
	}
	log.WithFields(logrus.Fields{
		"reached":  route.Reached,
		"steps":    route.Steps(),
		"visited":  q.NumVisited(),
		"duration": time.Since(began).String(),
	}).Info("route computed")
	return rec, nil
}

func (s *Server) trainingContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.opts.Training != nil {
		return s.opts.Training.WithTrainingDeadline(ctx)
	}
	innerCtx, cancel := context.WithCancel(ctx)
	return innerCtx, cancel, nil
}

// progressPipeline converts a job's episode stats into progress events and broadcasts them to
// the metrics recorder and the websocket hub. The returned func closes the input and waits for
// both consumers to drain.
func (s *Server) progressPipeline(jobID string) (chan<- reinforcement.EpisodeStats, func()) {
	stats := make(chan reinforcement.EpisodeStats, 64)
	events := channerics.Convert(s.done, (<-chan reinforcement.EpisodeStats)(stats), func(st reinforcement.EpisodeStats) ProgressEvent {
		return ProgressEvent{JobID: jobID, EpisodeStats: st}
	})
	outs := channerics.Broadcast(s.done, events, 2)

	drained := make(chan struct{}, 2)
	go func() {
		defer func() { drained <- struct{}{} }()
		for ev := range outs[0] {
			metrics.TrainingEpisodes.Inc()
			metrics.EpisodeReward.Observe(ev.TotalReward)
		}
	}()
	go func() {
		defer func() { drained <- struct{}{} }()
		for ev := range outs[1] {
			s.hub.Publish(ev)
		}
	}()

	return stats, func() {
		close(stats)
		<-drained
		<-drained
	}
}
