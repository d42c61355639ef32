/*
Searoute plans ship routes across a coarse global grid with tabular Q-learning. Weather (wave height
and wind speed) is a synthetic forecast cube that keeps drifting as training proceeds, and the
reward punishes every step into conditions beyond the safety limits. The route command runs the
batch flow once and prints the route with its predicted weather; serve exposes the same flow over
HTTP, with a websocket feed of training progress.
*/

package main

import (
	"fmt"
	"os"

	"searoute/cmd"
)

func main() {
	if err := cmd.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
