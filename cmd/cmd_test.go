package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"searoute/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRouteCommand(t *testing.T) {
	Convey("Given the route command", t, func() {
		dir := t.TempDir()
		missing := filepath.Join(dir, "absent.yaml")

		Convey("Without a config file the defaults train and print a route", func() {
			// The default config path is relative; run from an empty directory.
			wd, err := os.Getwd()
			So(err, ShouldBeNil)
			So(os.Chdir(dir), ShouldBeNil)
			defer os.Chdir(wd)

			out, err := execute("route", "--start", "0,-50", "--end", "30,30",
				"--episodes", "50", "--seed", "1", "--weather-seed", "2", "--log-level", "error", "--policy")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "(-65.00, -162.00)")
			So(out, ShouldContainSubstring, "unsafe steps")
			So(out, ShouldContainSubstring, "nm at 16 kn, ETA")
		})

		Convey("An explicitly named config file must exist", func() {
			_, err := execute("route", "--config", missing, "--start", "0,-50", "--end", "30,30")
			So(err, ShouldNotBeNil)
		})

		Convey("A config file supplies the params", func() {
			path := filepath.Join(dir, "config.yaml")
			So(os.WriteFile(path, []byte(`
kind: training
def:
  hyperParams:
  - key: episodes
    val: 0
  - key: seed
    val: 7
  algorithm:
    goal: state
`), 0o644), ShouldBeNil)

			out, err := execute("route", "--config", path, "--start", "0,-50", "--end", "30,30",
				"--weather-seed", "2", "--log-level", "error")
			So(err, ShouldBeNil)
			// An untrained table ties on every action, so the walk follows action 0.
			So(out, ShouldContainSubstring, "(-66.00, -162.00)")
		})

		Convey("Malformed positions and goals are rejected", func() {
			_, err := execute("route", "--config", missing, "--start", "0", "--end", "30,30")
			So(err, ShouldNotBeNil)
			_, err = execute("route", "--start", "north,-50", "--end", "30,30")
			So(err, ShouldNotBeNil)
			_, err = execute("route", "--start", "0,-50", "--end", "30,30", "--goal", "nearby")
			So(err, ShouldNotBeNil)
			_, err = execute("route", "--start", "0,-50")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseLatLon(t *testing.T) {
	Convey("Positions parse as lat,lon", t, func() {
		p, err := parseLatLon(" 12.5, -40")
		So(err, ShouldBeNil)
		So(p, ShouldResemble, grid_world.Position{Lat: 12.5, Lon: -40})

		_, err = parseLatLon("1,2,3")
		So(err, ShouldNotBeNil)
		_, err = parseLatLon("NaN,2")
		So(err, ShouldNotBeNil)
	})
}
