package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"searoute/atomic_float"
	"searoute/grid_world"
	"searoute/metrics"
	"searoute/reinforcement"
	"searoute/server/stream"
	"searoute/server/views"
	"searoute/store"
	"searoute/weather"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configures a Server. Zero values fall back to the defaults noted per field.
type Options struct {
	Addr string
	// Params drives training and extraction of every request.
	Params reinforcement.Params
	// Training optionally supplies a per-request training deadline.
	Training *reinforcement.TrainingConfig
	// WeatherSeed seeds the process-wide weather field; zero is clock seeded.
	WeatherSeed int64
	// Store persists computed routes; defaults to memory.
	Store  store.RouteStore
	Logger logrus.FieldLogger
	// RoutesPerSecond limits route computations; zero or less disables limiting.
	RoutesPerSecond float64
	Burst           int
	// MaxEpisodes bounds a request's episode override; defaults to 10x Params.Episodes.
	MaxEpisodes int
}

// Server computes weather-aware routes over HTTP. Every request trains on its own clone of the
// shared weather field with its own Q table; the evolved clone then replaces the shared field,
// so the weather keeps drifting across requests and concurrent requests resolve last writer wins.
type Server struct {
	opts    Options
	codec   *grid_world.Codec
	store   store.RouteStore
	logger  logrus.FieldLogger
	limiter *rate.Limiter
	router  *mux.Router
	page    *views.Page

	fieldMu sync.Mutex
	field   *weather.Field

	hub       *stream.Hub[ProgressEvent]
	status    trainingStatus
	done      chan struct{}
	closeOnce sync.Once
}

// trainingStatus is written by training goroutines and read by handlers without locking.
type trainingStatus struct {
	active      sync.WaitGroup
	running     atomic.Int64
	episodes    atomic.Int64
	lastReward  *atomic_float.AtomicFloat64
	bestReward  *atomic_float.AtomicFloat64
	totalReward *atomic_float.AtomicFloat64
}

// record folds one finished episode into the status. Concurrent runs contend on the running
// total, so the add is retried until it lands.
func (ts *trainingStatus) record(st reinforcement.EpisodeStats) {
	for _, ok := ts.totalReward.AtomicAdd(st.TotalReward); !ok; _, ok = ts.totalReward.AtomicAdd(st.TotalReward) {
	}
	ts.episodes.Add(1)
	ts.lastReward.AtomicSet(st.TotalReward)
	ts.bestReward.AtomicMax(st.TotalReward)
}

// NewServer builds the weather field, store and router.
func NewServer(opts Options) (*Server, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.MaxEpisodes <= 0 {
		opts.MaxEpisodes = 10 * opts.Params.Episodes
	}
	limit := rate.Inf
	if opts.RoutesPerSecond > 0 {
		limit = rate.Limit(opts.RoutesPerSecond)
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	page, err := views.NewPage(views.NewProgressPanel("progress", feedPath), views.NewRoutesTable("routes"))
	if err != nil {
		return nil, fmt.Errorf("parsing index page: %w", err)
	}

	codec := grid_world.NewCodec(opts.Params.GridSize)
	s := &Server{
		opts:    opts,
		codec:   codec,
		store:   opts.Store,
		logger:  opts.Logger,
		limiter: rate.NewLimiter(limit, opts.Burst),
		page:    page,
		field:   weather.NewField(codec, opts.Params.WeatherConfig(opts.WeatherSeed)),
		hub:     stream.NewHub[ProgressEvent](64),
		status: trainingStatus{
			lastReward:  atomic_float.NewAtomicFloat64(0),
			bestReward:  atomic_float.NewAtomicFloat64(math.Inf(-1)),
			totalReward: atomic_float.NewAtomicFloat64(0),
		},
		done: make(chan struct{}),
	}
	metrics.RegisterDefault()
	s.router = s.routes()
	return s, nil
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens until the context is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) (err error) {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.opts.Addr).Info("serving")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err = <-errs:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
	}
	s.Close()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		err = fmt.Errorf("serve: %w", err)
		return
	}
	return nil
}

// Close waits for in-flight training, ends all progress subscriptions and closes the store.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.status.active.Wait()
		s.hub.Close()
		if err := s.store.Close(); err != nil {
			s.logger.WithError(err).Warn("closing route store")
		}
	})
}

// cloneField returns an owned copy of the shared field for one training run.
func (s *Server) cloneField() *weather.Field {
	s.fieldMu.Lock()
	defer s.fieldMu.Unlock()
	return s.field.Clone()
}

// replaceField installs an evolved field as the shared one.
func (s *Server) replaceField(f *weather.Field) {
	s.fieldMu.Lock()
	defer s.fieldMu.Unlock()
	s.field = f
}

func (s *Server) predict(p grid_world.Position, t int) weather.Sample {
	s.fieldMu.Lock()
	defer s.fieldMu.Unlock()
	return s.field.Predict(p.Lat, p.Lon, t)
}
