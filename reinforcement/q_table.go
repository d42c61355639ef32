package reinforcement

import (
	"fmt"
	"math"

	"searoute/grid_world"

	"gonum.org/v1/gonum/mat"
)

// QTable is a dense (state x action) matrix of expected discounted rewards, zero initialized.
type QTable struct {
	values *mat.Dense
}

func NewQTable(numStates int) *QTable {
	return &QTable{
		values: mat.NewDense(numStates, int(grid_world.NumActions), nil),
	}
}

func (q *QTable) NumStates() int {
	rows, _ := q.values.Dims()
	return rows
}

func (q *QTable) Get(s grid_world.State, a grid_world.Action) float64 {
	return q.values.At(int(s), int(a))
}

// Set stores a Q-value. Non-finite values cannot arise from the bounded rewards, so one
// showing up means the table has been corrupted; Set panics rather than let it spread.
func (q *QTable) Set(s grid_world.State, a grid_world.Action, val float64) {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		panic(fmt.Sprintf("non-finite q-value %v at state %d action %v", val, s, a))
	}
	q.values.Set(int(s), int(a), val)
}

// ArgMax returns the highest valued action of the state. Ties go to the lowest action index,
// a consequence of the first-max scan.
func (q *QTable) ArgMax(s grid_world.State) grid_world.Action {
	row := q.values.RawRowView(int(s))
	best := 0
	for a := 1; a < len(row); a++ {
		if row[a] > row[best] {
			best = a
		}
	}
	return grid_world.Action(best)
}

// Max returns the state's highest action value.
func (q *QTable) Max(s grid_world.State) float64 {
	return q.Get(s, q.ArgMax(s))
}

// Update applies the Q-learning rule:
//
//	Q[s,a] <- (1-alpha)*Q[s,a] + alpha*(reward + gamma*max_a' Q[s',a'])
func (q *QTable) Update(
	s grid_world.State,
	a grid_world.Action,
	reward float64,
	next grid_world.State,
	alpha, gamma float64,
) {
	cur := q.Get(s, a)
	q.Set(s, a, (1-alpha)*cur+alpha*(reward+gamma*q.Max(next)))
}

// Equal reports bit-identical tables.
func (q *QTable) Equal(other *QTable) bool {
	return mat.Equal(q.values, other.values)
}

// IsZero reports whether no value has been learned yet.
func (q *QTable) IsZero() bool {
	rows, cols := q.values.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if q.values.At(r, c) != 0 {
				return false
			}
		}
	}
	return true
}

// Visited reports whether any action value of the state has been updated away from zero.
func (q *QTable) Visited(s grid_world.State) bool {
	for _, v := range q.values.RawRowView(int(s)) {
		if v != 0 {
			return true
		}
	}
	return false
}

// NumVisited returns the number of visited states.
func (q *QTable) NumVisited() (n int) {
	for s := 0; s < q.NumStates(); s++ {
		if q.Visited(grid_world.State(s)) {
			n++
		}
	}
	return
}
