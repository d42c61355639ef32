package grid_world

import (
	"fmt"
	"math"
)

// Position is a latitude/longitude pair in degrees. Positions are not normalized; values
// outside [-90, 90) x [-180, 180) are wrapped only when they are quantized by a Codec.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.Lat, p.Lon)
}

// State is a quantized grid cell index in [0, size*size).
type State int

// Action indexes one of the eight compass steps.
type Action int

// The compass actions. Note that North decreases latitude: the grid is oriented like the
// console display, row zero at the top, so "up" is toward the lower row index.
const (
	North Action = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
	NumActions
)

var (
	latDeltas = [NumActions]float64{-1, -1, 0, 1, 1, 1, 0, -1}
	lonDeltas = [NumActions]float64{0, 1, 1, 1, 0, -1, -1, -1}

	actionNames = [NumActions]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
)

// Delta returns the unit (dlat, dlon) step of the action.
func (a Action) Delta() (dlat, dlon float64) {
	return latDeltas[a], lonDeltas[a]
}

func (a Action) String() string {
	if a < 0 || a >= NumActions {
		return fmt.Sprintf("Action(%d)", int(a))
	}
	return actionNames[a]
}

// Codec maps continuous positions onto a size x size grid and back.
//
// Encode and Decode are intentionally not inverses of one another. Encode quantizes the full
// globe onto the grid, whereas Decode merely subtracts the lat/lon offsets from the row and
// column indices, yielding a bookkeeping position in the south-west corner of the globe. Training
// and route extraction both step from decoded positions, so this asymmetry shapes how the agent
// moves and must be kept as-is.
type Codec struct {
	size int
}

// NewCodec returns a codec for a size x size grid. Sizes below one are bumped to one.
func NewCodec(size int) *Codec {
	if size < 1 {
		size = 1
	}
	return &Codec{size: size}
}

// Size returns the grid resolution N.
func (c *Codec) Size() int {
	return c.size
}

// NumStates returns N*N.
func (c *Codec) NumStates() int {
	return c.size * c.size
}

// Cell quantizes a position into its grid row and column, wrapping out-of-range coordinates
// around the grid. This is the single quantization used by both the codec and the weather field.
func (c *Codec) Cell(p Position) (row, col int) {
	row = wrap(int(math.Floor((p.Lat+90)*float64(c.size)/180)), c.size)
	col = wrap(int(math.Floor((p.Lon+180)*float64(c.size)/360)), c.size)
	return
}

// Encode returns the state index of the position's grid cell.
func (c *Codec) Encode(p Position) State {
	row, col := c.Cell(p)
	return State(row*c.size + col)
}

// Decode returns the bookkeeping position of a state: its row and column minus the lat/lon
// offsets. See the Codec docs regarding why this is not the cell's true location.
func (c *Codec) Decode(s State) Position {
	row, col := c.RowCol(s)
	return Position{
		Lat: float64(row) - 90,
		Lon: float64(col) - 180,
	}
}

// RowCol splits a state into its grid row and column.
func (c *Codec) RowCol(s State) (row, col int) {
	idx := wrap(int(s), c.NumStates())
	return idx / c.size, idx % c.size
}

// Step applies the action's unit delta to the position. The result is neither clamped nor
// wrapped; Encode is responsible for bringing it back onto the grid.
func (c *Codec) Step(p Position, a Action) Position {
	dlat, dlon := a.Delta()
	return Position{
		Lat: p.Lat + dlat,
		Lon: p.Lon + dlon,
	}
}

// wrap is a non-negative modulo.
func wrap(i, n int) int {
	return ((i % n) + n) % n
}
