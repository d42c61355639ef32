package reinforcement

import (
	"searoute/grid_world"
	"searoute/weather"
)

// SafetyLimits are the thresholds above which a weather sample is unsafe, and the cost of
// violating them.
type SafetyLimits struct {
	WaveHeight float64
	WindSpeed  float64
	// Penalty is charged once per violated threshold.
	Penalty float64
	// FuelCost is charged on every step regardless of the distance covered.
	FuelCost float64
}

// Limits extracts the safety limits from the params.
func (p Params) Limits() SafetyLimits {
	return SafetyLimits{
		WaveHeight: p.WaveHeightLimit,
		WindSpeed:  p.WindSpeedLimit,
		Penalty:    p.SafetyPenalty,
		FuelCost:   p.FuelCost,
	}
}

// WeatherConfig returns the weather field configuration matching the params.
func (p Params) WeatherConfig(seed int64) weather.Config {
	return weather.Config{
		TimeSteps:     p.TimeSteps,
		MaxWaveHeight: p.MaxWaveHeight,
		MaxWindSpeed:  p.MaxWindSpeed,
		Seed:          seed,
	}
}

// Safe reports whether the sample is within both thresholds.
func (l SafetyLimits) Safe(s weather.Sample) bool {
	return s.WaveHeight <= l.WaveHeight && s.WindSpeed <= l.WindSpeed
}

// Reward scores a sample: minus the penalty for each exceeded threshold, minus the fuel cost.
// Penalties are additive, so a sample violating both thresholds costs double.
func (l SafetyLimits) Reward(s weather.Sample) float64 {
	penalty := 0.0
	if s.WaveHeight > l.WaveHeight {
		penalty += l.Penalty
	}
	if s.WindSpeed > l.WindSpeed {
		penalty += l.Penalty
	}
	return -penalty - l.FuelCost
}

// RewardModel scores transitions against a weather field.
type RewardModel struct {
	field  *weather.Field
	limits SafetyLimits
}

func NewRewardModel(field *weather.Field, limits SafetyLimits) *RewardModel {
	return &RewardModel{field: field, limits: limits}
}

// Reward returns the reward for arriving at p at time t.
func (rm *RewardModel) Reward(p grid_world.Position, t int) float64 {
	_, reward := rm.Assess(p, t)
	return reward
}

// Assess returns the weather at p and time t alongside its reward.
func (rm *RewardModel) Assess(p grid_world.Position, t int) (weather.Sample, float64) {
	sample := rm.field.Predict(p.Lat, p.Lon, t)
	return sample, rm.limits.Reward(sample)
}
