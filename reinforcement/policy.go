package reinforcement

import (
	"math"

	"searoute/grid_world"
)

// Route is the greedy walk produced from a trained table.
type Route struct {
	// Positions starts with the decoded start cell and holds one entry per step taken.
	Positions []grid_world.Position `json:"positions"`
	// Reached is false when the walk stopped at the horizon without arriving.
	Reached bool `json:"reached"`
}

// Steps returns the number of transitions in the route.
func (r Route) Steps() int {
	if len(r.Positions) == 0 {
		return 0
	}
	return len(r.Positions) - 1
}

// DistanceKm sums the great-circle length of every leg.
func (r Route) DistanceKm() (km float64) {
	for i := 1; i < len(r.Positions); i++ {
		km += Haversine(r.Positions[i-1], r.Positions[i])
	}
	return
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometers between two positions.
func Haversine(a, b grid_world.Position) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Extractor walks a trained table greedily. It never mutates the table.
type Extractor struct {
	codec   *grid_world.Codec
	horizon int
	check   GoalCheck
}

func NewExtractor(params Params, codec *grid_world.Codec) *Extractor {
	return &Extractor{
		codec:   codec,
		horizon: params.Horizon,
		check:   params.GoalCheck,
	}
}

// Extract follows argmax Q from start until the goal check fires or the horizon is reached.
// The result always holds at most horizon+1 positions.
func (e *Extractor) Extract(q *QTable, start, end grid_world.Position) Route {
	goal := newGoal(e.codec, e.check, end)
	state := e.codec.Encode(start)
	route := Route{
		Positions: []grid_world.Position{e.codec.Decode(state)},
	}
	if goal.reached(state) {
		route.Reached = true
		return route
	}

	for t := 0; t < e.horizon; t++ {
		pos := e.codec.Step(e.codec.Decode(state), q.ArgMax(state))
		route.Positions = append(route.Positions, pos)
		state = e.codec.Encode(pos)
		if goal.reached(state) {
			route.Reached = true
			break
		}
	}
	return route
}
