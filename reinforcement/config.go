package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes the algorithmic and training parameters outside of code. It holds the
// standard RL params (learning rate, gamma, epsilon) alongside the grid, weather and reward
// constants, all as flat key/val hyper-parameters.
// Tags are lowercase because viper lowercases every key it reads.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Algorithm holds string-valued selectors, e.g. goal: state|decoded.
	Algorithm map[string]string `yaml:"algorithm"`
	// TrainingDeadline is a duration describing when to abandon a training run.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml reads a {kind, def} document and decodes def as a TrainingConfig.
// Viper handles locating and reading the file; def is round-tripped through yaml so that the
// inner config keeps its own yaml tags.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	var defBytes []byte
	if defBytes, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(defBytes, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}

// GoalCheck selects how a trajectory decides it has arrived.
type GoalCheck int

const (
	// GoalState compares quantized states: state == encode(end).
	GoalState GoalCheck = iota
	// GoalDecoded compares decode(state) to end exactly. Since decode is not an inverse of
	// encode this rarely (often never) fires; it is kept to reproduce the legacy behavior.
	GoalDecoded
)

func (g GoalCheck) String() string {
	if g == GoalDecoded {
		return "decoded"
	}
	return "state"
}

// ParseGoalCheck accepts "state" (or empty) and "decoded".
func ParseGoalCheck(s string) (GoalCheck, error) {
	switch s {
	case "", "state":
		return GoalState, nil
	case "decoded":
		return GoalDecoded, nil
	}
	return GoalState, fmt.Errorf("unknown goal check %q", s)
}

// Params is the explicit configuration passed to the weather field, reward model, learner and
// extractor constructors.
type Params struct {
	GridSize  int
	TimeSteps int
	Episodes  int
	// Horizon bounds both training episodes and route extraction.
	Horizon int

	Epsilon      float64
	EpsilonDecay float64
	EpsilonMin   float64
	Alpha        float64
	Gamma        float64

	MaxWaveHeight   float64
	MaxWindSpeed    float64
	WaveHeightLimit float64
	WindSpeedLimit  float64
	SafetyPenalty   float64
	// FuelCost is both the per-step reward cost and the burn in tons per nautical mile.
	FuelCost float64
	// ShipSpeed in knots, for voyage planning only.
	ShipSpeed float64

	// Seed drives exploration; the weather field takes its own seed. Zero means clock seeded.
	Seed      int64
	GoalCheck GoalCheck
}

func DefaultParams() Params {
	return Params{
		GridSize:        50,
		TimeSteps:       20,
		Episodes:        1000,
		Horizon:         20,
		Epsilon:         0.1,
		EpsilonDecay:    1,
		EpsilonMin:      0,
		Alpha:           0.1,
		Gamma:           0.9,
		MaxWaveHeight:   10,
		MaxWindSpeed:    30,
		WaveHeightLimit: 5,
		WindSpeedLimit:  20,
		SafetyPenalty:   1000,
		FuelCost:        0.05,
		ShipSpeed:       16,
		GoalCheck:       GoalState,
	}
}

var (
	ErrInvalidAlpha   = errors.New("invalid value for alpha")
	ErrInvalidGamma   = errors.New("invalid value for gamma")
	ErrInvalidEpsilon = errors.New("invalid epsilon value")
)

// Validate checks the params for values the learner cannot work with.
func (p Params) Validate() error {
	switch {
	case p.Alpha < 0 || p.Alpha > 1:
		return ErrInvalidAlpha
	case p.Gamma < 0 || p.Gamma > 1:
		return ErrInvalidGamma
	case p.Epsilon < 0 || p.Epsilon > 1, p.EpsilonMin < 0 || p.EpsilonMin > 1:
		return ErrInvalidEpsilon
	case p.EpsilonDecay <= 0 || p.EpsilonDecay > 1:
		return fmt.Errorf("epsilon decay must be in (0,1], got %v", p.EpsilonDecay)
	case p.GridSize < 1:
		return fmt.Errorf("grid size must be positive, got %d", p.GridSize)
	case p.TimeSteps < 1:
		return fmt.Errorf("time steps must be positive, got %d", p.TimeSteps)
	case p.Horizon < 1:
		return fmt.Errorf("horizon must be positive, got %d", p.Horizon)
	case p.ShipSpeed <= 0:
		return fmt.Errorf("ship speed must be positive, got %v", p.ShipSpeed)
	case p.Episodes < 0:
		return fmt.Errorf("episodes must be >= 0, got %d", p.Episodes)
	}
	return nil
}

// Params overlays the configured hyper-parameters on DefaultParams and validates the result.
func (cfg *TrainingConfig) Params() (Params, error) {
	p := DefaultParams()
	p.GridSize = int(cfg.GetHyperParamOrDefault("gridSize", float64(p.GridSize)))
	p.TimeSteps = int(cfg.GetHyperParamOrDefault("timeSteps", float64(p.TimeSteps)))
	p.Episodes = int(cfg.GetHyperParamOrDefault("episodes", float64(p.Episodes)))
	p.Horizon = int(cfg.GetHyperParamOrDefault("horizon", float64(p.Horizon)))
	p.Epsilon = cfg.GetHyperParamOrDefault("epsilon", p.Epsilon)
	p.EpsilonDecay = cfg.GetHyperParamOrDefault("epsilonDecay", p.EpsilonDecay)
	p.EpsilonMin = cfg.GetHyperParamOrDefault("epsilonMin", p.EpsilonMin)
	p.Alpha = cfg.GetHyperParamOrDefault("alpha", p.Alpha)
	p.Gamma = cfg.GetHyperParamOrDefault("gamma", p.Gamma)
	p.MaxWaveHeight = cfg.GetHyperParamOrDefault("maxWaveHeight", p.MaxWaveHeight)
	p.MaxWindSpeed = cfg.GetHyperParamOrDefault("maxWindSpeed", p.MaxWindSpeed)
	p.WaveHeightLimit = cfg.GetHyperParamOrDefault("waveHeightLimit", p.WaveHeightLimit)
	p.WindSpeedLimit = cfg.GetHyperParamOrDefault("windSpeedLimit", p.WindSpeedLimit)
	p.SafetyPenalty = cfg.GetHyperParamOrDefault("safetyPenalty", p.SafetyPenalty)
	p.FuelCost = cfg.GetHyperParamOrDefault("fuelCost", p.FuelCost)
	p.ShipSpeed = cfg.GetHyperParamOrDefault("shipSpeed", p.ShipSpeed)
	// Hyper-params are float64, so seeds above 2^53 lose their low bits.
	p.Seed = int64(cfg.GetHyperParamOrDefault("seed", float64(p.Seed)))

	var err error
	if p.GoalCheck, err = ParseGoalCheck(cfg.Algorithm["goal"]); err != nil {
		return p, err
	}
	if err = p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
