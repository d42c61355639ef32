package server

import (
	"fmt"
	"math"
	"strconv"

	"searoute/grid_world"
)

// RouteRequest is the body of POST /v1/routes. Coordinates are [lat, lon] pairs and are not
// range checked: out of range values wrap around the grid.
//
// Seed only seeds exploration. Without WeatherSeed the run trains on a clone of the drifting
// shared field, so its result depends on earlier requests. With WeatherSeed it trains on a fresh
// field of that seed and leaves the shared field alone; both seeds together make a request
// reproducible.
type RouteRequest struct {
	Start       []float64 `json:"start"`
	End         []float64 `json:"end"`
	Episodes    *int      `json:"episodes,omitempty"`
	Seed        int64     `json:"seed,omitempty"`
	WeatherSeed int64     `json:"weatherSeed,omitempty"`
}

// CalculateRouteRequest is the body of the legacy POST /calculate-route endpoint.
type CalculateRouteRequest struct {
	StartPoint []float64 `json:"startPoint"`
	EndPoint   []float64 `json:"endPoint"`
}

func parsePoint(name string, pt []float64) (grid_world.Position, error) {
	if len(pt) != 2 {
		return grid_world.Position{}, fmt.Errorf("%s must be a [lat, lon] pair", name)
	}
	for _, v := range pt {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return grid_world.Position{}, fmt.Errorf("%s must be finite", name)
		}
	}
	return grid_world.Position{Lat: pt[0], Lon: pt[1]}, nil
}

func (s *Server) validateRouteRequest(req *RouteRequest) (routeJob, error) {
	start, err := parsePoint("start", req.Start)
	if err != nil {
		return routeJob{}, err
	}
	end, err := parsePoint("end", req.End)
	if err != nil {
		return routeJob{}, err
	}
	episodes := s.opts.Params.Episodes
	if req.Episodes != nil {
		episodes = *req.Episodes
		if episodes < 0 || episodes > s.opts.MaxEpisodes {
			return routeJob{}, fmt.Errorf("episodes must be in [0, %d]", s.opts.MaxEpisodes)
		}
	}
	job := newRouteJob(start, end, episodes, req.Seed)
	job.weatherSeed = req.WeatherSeed
	return job, nil
}

// parseWeatherQuery reads lat, lon and the optional time index t.
func parseWeatherQuery(get func(string) string) (p grid_world.Position, t int, err error) {
	if p.Lat, err = strconv.ParseFloat(get("lat"), 64); err != nil {
		return p, 0, fmt.Errorf("invalid lat: %w", err)
	}
	if p.Lon, err = strconv.ParseFloat(get("lon"), 64); err != nil {
		return p, 0, fmt.Errorf("invalid lon: %w", err)
	}
	if _, err = parsePoint("position", []float64{p.Lat, p.Lon}); err != nil {
		return p, 0, err
	}
	if raw := get("t"); raw != "" {
		if t, err = strconv.Atoi(raw); err != nil || t < 0 {
			return p, 0, fmt.Errorf("t must be a non-negative integer")
		}
	}
	return p, t, nil
}
