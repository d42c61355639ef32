package reinforcement

import (
	"searoute/weather"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RouteWeather predicts the weather along a route, using position i's index as its time step.
func RouteWeather(field *weather.Field, route Route) []weather.Sample {
	samples := make([]weather.Sample, len(route.Positions))
	for i, p := range route.Positions {
		samples[i] = field.Predict(p.Lat, p.Lon, i)
	}
	return samples
}

// RouteSummary aggregates the conditions met along a route.
type RouteSummary struct {
	MeanWaveHeight float64 `json:"meanWaveHeight"`
	MaxWaveHeight  float64 `json:"maxWaveHeight"`
	MeanWindSpeed  float64 `json:"meanWindSpeed"`
	MaxWindSpeed   float64 `json:"maxWindSpeed"`
	UnsafeSteps    int     `json:"unsafeSteps"`
}

// Summarize computes the route summary. An empty sample set yields the zero summary.
func Summarize(samples []weather.Sample, limits SafetyLimits) (summary RouteSummary) {
	if len(samples) == 0 {
		return
	}
	waves := make([]float64, len(samples))
	winds := make([]float64, len(samples))
	for i, s := range samples {
		waves[i] = s.WaveHeight
		winds[i] = s.WindSpeed
		if !limits.Safe(s) {
			summary.UnsafeSteps++
		}
	}
	summary.MeanWaveHeight = stat.Mean(waves, nil)
	summary.MaxWaveHeight = floats.Max(waves)
	summary.MeanWindSpeed = stat.Mean(winds, nil)
	summary.MaxWindSpeed = floats.Max(winds)
	return
}
