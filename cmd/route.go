package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"searoute/grid_world"
	"searoute/logging"
	"searoute/reinforcement"
	"searoute/weather"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// progressEvery is how often, in episodes, training progress is logged.
const progressEvery = 100

type routeOptions struct {
	start, end  string
	episodes    int
	seed        int64
	weatherSeed int64
	goal        string
	showPolicy  bool
}

func routeCmd(root *rootOptions) *cobra.Command {
	opts := &routeOptions{}
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Train on a fresh weather field and print the greedy route",
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
			if err := opts.apply(cmd, &params); err != nil {
				return err
			}
			start, err := parseLatLon(opts.start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			end, err := parseLatLon(opts.end)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if tc != nil {
				var cancel context.CancelFunc
				if ctx, cancel, err = tc.WithTrainingDeadline(ctx); err != nil {
					return err
				}
				defer cancel()
			}
			return planRoute(ctx, cmd, logger, params, opts.weatherSeed, start, end, opts.showPolicy)
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "Start position as lat,lon")
	cmd.Flags().StringVar(&opts.end, "end", "", "End position as lat,lon")
	cmd.Flags().IntVar(&opts.episodes, "episodes", 0, "Training episodes (overrides config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Learner seed, 0 for clock seeded (overrides config)")
	cmd.Flags().Int64Var(&opts.weatherSeed, "weather-seed", 0, "Weather seed, 0 for clock seeded")
	cmd.Flags().StringVar(&opts.goal, "goal", "", "Goal check, state or decoded (overrides config)")
	cmd.Flags().BoolVar(&opts.showPolicy, "policy", false, "Also print the greedy policy grid")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// apply overlays explicitly set flags on the configured params.
func (o *routeOptions) apply(cmd *cobra.Command, params *reinforcement.Params) error {
	if cmd.Flags().Changed("episodes") {
		params.Episodes = o.episodes
	}
	if cmd.Flags().Changed("seed") {
		params.Seed = o.seed
	}
	if cmd.Flags().Changed("goal") {
		goal, err := reinforcement.ParseGoalCheck(o.goal)
		if err != nil {
			return err
		}
		params.GoalCheck = goal
	}
	return params.Validate()
}

// planRoute is the batch flow: train, extract, predict the weather along the route and print it.
func planRoute(
	ctx context.Context,
	cmd *cobra.Command,
	logger *logging.Logger,
	params reinforcement.Params,
	weatherSeed int64,
	start, end grid_world.Position,
	showPolicy bool,
) error {
	codec := grid_world.NewCodec(params.GridSize)
	field := weather.NewField(codec, params.WeatherConfig(weatherSeed))

	learner := reinforcement.NewLearner(params, codec, field).
		WithProgress(func(_ context.Context, st reinforcement.EpisodeStats) {
			if st.Episode%progressEvery == 0 {
				logger.WithFields(logrus.Fields{
					"steps":   st.Steps,
					"reached": st.ReachedGoal,
					"epsilon": st.Epsilon,
				}).Infof("Episode %d, Total Reward: %.2f", st.Episode, st.TotalReward)
			}
		})

	began := time.Now()
	q, err := learner.Train(ctx, start, end, params.Episodes)
	if err != nil {
		return fmt.Errorf("training: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"episodes": params.Episodes,
		"visited":  q.NumVisited(),
		"duration": time.Since(began).String(),
	}).Info("training finished")

	route := reinforcement.NewExtractor(params, codec).Extract(q, start, end)
	samples := reinforcement.RouteWeather(field, route)

	out := cmd.OutOrStdout()
	reinforcement.ShowRoute(out, route, samples, params.Limits())
	if showPolicy {
		fmt.Fprintln(out)
		reinforcement.ShowPolicy(out, q, codec, route)
	}
	summary := reinforcement.Summarize(samples, params.Limits())
	fmt.Fprintf(out, "waves mean %.2fm max %.2fm, wind mean %.2fkn max %.2fkn, %d unsafe steps\n",
		summary.MeanWaveHeight, summary.MaxWaveHeight,
		summary.MeanWindSpeed, summary.MaxWindSpeed,
		summary.UnsafeSteps)
	voyage := params.Voyage(route)
	fmt.Fprintf(out, "%.1f nm at %.0f kn, ETA %.1f h, fuel %.2f t\n",
		voyage.DistanceNm, voyage.SpeedKnots, voyage.Hours, voyage.FuelTons)
	return nil
}

// parseLatLon parses "lat,lon".
func parseLatLon(s string) (grid_world.Position, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return grid_world.Position{}, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return grid_world.Position{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return grid_world.Position{}, fmt.Errorf("longitude: %w", err)
	}
	if math.IsNaN(lat+lon) || math.IsInf(lat+lon, 0) {
		return grid_world.Position{}, fmt.Errorf("position must be finite, got %q", s)
	}
	return grid_world.Position{Lat: lat, Lon: lon}, nil
}
