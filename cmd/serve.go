package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"searoute/logging"
	"searoute/server"
	"searoute/store"

	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr        string
	rate        float64
	burst       int
	weatherSeed int64
	maxEpisodes int
	storeTTL    time.Duration
}

func serveCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve route computations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(root.log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Destroy()

			params, tc, err := root.loadTraining(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			routes, err := store.FromEnv(ctx, logger, opts.storeTTL)
			if err != nil {
				return fmt.Errorf("failed to open route store: %w", err)
			}
			srv, err := server.NewServer(server.Options{
				Addr:            opts.addr,
				Params:          params,
				Training:        tc,
				WeatherSeed:     opts.weatherSeed,
				Store:           routes,
				Logger:          logger,
				RoutesPerSecond: opts.rate,
				Burst:           opts.burst,
				MaxEpisodes:     opts.maxEpisodes,
			})
			if err != nil {
				routes.Close()
				return err
			}
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", defaultAddr(), "Listen address (default from PORT)")
	cmd.Flags().Float64Var(&opts.rate, "rate", 2, "Route computations per second, 0 for unlimited")
	cmd.Flags().IntVar(&opts.burst, "burst", 4, "Route computation burst")
	cmd.Flags().Int64Var(&opts.weatherSeed, "weather-seed", 0, "Weather seed, 0 for clock seeded")
	cmd.Flags().IntVar(&opts.maxEpisodes, "max-episodes", 0, "Largest per-request episode count, 0 for 10x the configured episodes")
	cmd.Flags().DurationVar(&opts.storeTTL, "store-ttl", 24*time.Hour, "Expiry of routes kept in redis")
	return cmd
}

func defaultAddr() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}
