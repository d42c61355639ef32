package reinforcement

import (
	"fmt"
	"io"

	"searoute/grid_world"
	"searoute/weather"

	"github.com/logrusorgru/aurora"
)

// ShowRoute prints one line per route position with its predicted weather. Unsafe steps are
// highlighted red, safe steps green.
func ShowRoute(w io.Writer, route Route, samples []weather.Sample, limits SafetyLimits) {
	for i, p := range route.Positions {
		line := fmt.Sprintf("%3d %-18s", i, p)
		if i < len(samples) {
			s := samples[i]
			line += fmt.Sprintf(" wave %5.2fm wind %5.2fkn", s.WaveHeight, s.WindSpeed)
			if limits.Safe(s) {
				fmt.Fprintln(w, aurora.Green(line))
			} else {
				fmt.Fprintln(w, aurora.Red(line))
			}
			continue
		}
		fmt.Fprintln(w, line)
	}
	if route.Reached {
		fmt.Fprintln(w, aurora.Bold("arrived"), fmt.Sprintf("after %d steps, %.0f km", route.Steps(), route.DistanceKm()))
	} else {
		fmt.Fprintln(w, aurora.Yellow("horizon reached without arriving"), fmt.Sprintf("after %d steps", route.Steps()))
	}
}

var policyGlyphs = [grid_world.NumActions]rune{'^', '/', '>', '\\', 'v', '/', '<', '\\'}

// ShowPolicy prints the greedy action of every cell, row zero at the top. Cells that were never
// updated are shown as '.', and the route's cells are highlighted.
func ShowPolicy(w io.Writer, q *QTable, codec *grid_world.Codec, route Route) {
	onRoute := make(map[grid_world.State]bool, len(route.Positions))
	for _, p := range route.Positions {
		onRoute[codec.Encode(p)] = true
	}

	for row := 0; row < codec.Size(); row++ {
		for col := 0; col < codec.Size(); col++ {
			s := grid_world.State(row*codec.Size() + col)
			glyph := '.'
			if q.Visited(s) {
				glyph = policyGlyphs[q.ArgMax(s)]
			}
			if onRoute[s] {
				fmt.Fprint(w, aurora.Cyan(string(glyph)))
			} else {
				fmt.Fprintf(w, "%c", glyph)
			}
		}
		fmt.Fprintln(w)
	}
}
