// Package weather holds the synthetic wave-height and wind-speed field that drives the reward.
// The field is a stochastic stand-in for a forecast: every cell and time slot is drawn uniformly and
// independently, with no spatial or temporal correlation.
package weather

import (
	"math"
	"math/rand"
	"time"

	"searoute/grid_world"
)

// Sample is the weather at one grid cell and time index.
type Sample struct {
	// WaveHeight in meters.
	WaveHeight float64 `json:"waveHeight"`
	// WindSpeed in knots.
	WindSpeed float64 `json:"windSpeed"`
}

// Config parameterizes the field's horizon and sampling ranges.
type Config struct {
	TimeSteps     int
	MaxWaveHeight float64
	MaxWindSpeed  float64
	// Seed for the resampling source; zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns a 20 step horizon with waves in [0,10) m and wind in [0,30) knots.
func DefaultConfig() Config {
	return Config{
		TimeSteps:     20,
		MaxWaveHeight: 10,
		MaxWindSpeed:  30,
	}
}

// Field is a dense (row, col, time) cube of wave heights and wind speeds.
// A Field is not safe for concurrent use; give each training run its own via Clone.
type Field struct {
	codec   *grid_world.Codec
	steps   int
	maxWave float64
	maxWind float64
	waves   []float64
	winds   []float64
	rng     *rand.Rand
}

// NewField allocates and randomly fills a field over the codec's grid.
func NewField(codec *grid_world.Codec, cfg Config) *Field {
	if cfg.TimeSteps < 1 {
		cfg.TimeSteps = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	cells := codec.NumStates()
	f := &Field{
		codec:   codec,
		steps:   cfg.TimeSteps,
		maxWave: math.Max(cfg.MaxWaveHeight, 0),
		maxWind: math.Max(cfg.MaxWindSpeed, 0),
		waves:   make([]float64, cells*cfg.TimeSteps),
		winds:   make([]float64, cells*cfg.TimeSteps),
		rng:     rand.New(rand.NewSource(seed)),
	}
	for i := range f.waves {
		f.waves[i] = f.rng.Float64() * f.maxWave
	}
	for i := range f.winds {
		f.winds[i] = f.rng.Float64() * f.maxWind
	}
	return f
}

// TimeSteps returns the number of time slices T.
func (f *Field) TimeSteps() int {
	return f.steps
}

// Codec returns the grid quantization shared with the field.
func (f *Field) Codec() *grid_world.Codec {
	return f.codec
}

// Predict returns the weather at the position's cell. Times past the horizon are clamped to the
// last slice, as are negative times to the first.
func (f *Field) Predict(lat, lon float64, t int) Sample {
	row, col := f.codec.Cell(grid_world.Position{Lat: lat, Lon: lon})
	return f.At(row, col, t)
}

// At returns the weather at a grid cell and (clamped) time.
func (f *Field) At(row, col, t int) Sample {
	i := f.index(row, col, f.clamp(t))
	return Sample{WaveHeight: f.waves[i], WindSpeed: f.winds[i]}
}

// Set pins the weather at a grid cell and time. Negative values are floored at zero.
func (f *Field) Set(row, col, t int, s Sample) {
	i := f.index(row, col, f.clamp(t))
	f.waves[i] = math.Max(s.WaveHeight, 0)
	f.winds[i] = math.Max(s.WindSpeed, 0)
}

// Advance shifts every cell's series one step earlier in time, dropping slice zero, and appends a
// freshly drawn final slice.
func (f *Field) Advance() {
	last := f.steps - 1
	for cell := 0; cell < f.codec.NumStates(); cell++ {
		base := cell * f.steps
		copy(f.waves[base:base+last], f.waves[base+1:base+f.steps])
		copy(f.winds[base:base+last], f.winds[base+1:base+f.steps])
	}
	for cell := 0; cell < f.codec.NumStates(); cell++ {
		f.waves[cell*f.steps+last] = f.rng.Float64() * f.maxWave
	}
	for cell := 0; cell < f.codec.NumStates(); cell++ {
		f.winds[cell*f.steps+last] = f.rng.Float64() * f.maxWind
	}
}

// Clone returns an independent copy of the field. The clone's random source is seeded from
// the receiver's, so cloning advances the receiver's source by one draw.
func (f *Field) Clone() *Field {
	clone := &Field{
		codec:   f.codec,
		steps:   f.steps,
		maxWave: f.maxWave,
		maxWind: f.maxWind,
		waves:   append([]float64(nil), f.waves...),
		winds:   append([]float64(nil), f.winds...),
		rng:     rand.New(rand.NewSource(f.rng.Int63())),
	}
	return clone
}

// Equal reports whether both fields hold identical samples.
func (f *Field) Equal(other *Field) bool {
	if f.steps != other.steps || len(f.waves) != len(other.waves) {
		return false
	}
	for i := range f.waves {
		if f.waves[i] != other.waves[i] || f.winds[i] != other.winds[i] {
			return false
		}
	}
	return true
}

func (f *Field) clamp(t int) int {
	if t < 0 {
		return 0
	}
	if t >= f.steps {
		return f.steps - 1
	}
	return t
}

func (f *Field) index(row, col, t int) int {
	size := f.codec.Size()
	row = ((row % size) + size) % size
	col = ((col % size) + size) % size
	return (row*size+col)*f.steps + t
}
