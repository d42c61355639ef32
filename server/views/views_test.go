package views

import (
	"bytes"
	"errors"
	"testing"

	"searoute/grid_world"
	"searoute/reinforcement"
	"searoute/store"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPage(t *testing.T) {
	Convey("Given the index page", t, func() {
		page, err := NewPage(NewProgressPanel("progress", "/v1/training/ws"), NewRoutesTable("routes"))
		So(err, ShouldBeNil)

		Convey("Without routes it says so", func() {
			var buf bytes.Buffer
			So(page.Render(&buf, PageData{}), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "No routes yet.")
			So(buf.String(), ShouldContainSubstring, "/v1/training/ws")
		})

		Convey("Stored routes are listed with their sketch", func() {
			rec := store.Record{
				ID:    "abc123",
				Start: grid_world.Position{Lat: 0, Lon: -50},
				End:   grid_world.Position{Lat: 30, Lon: 30},
				Route: reinforcement.Route{Positions: []grid_world.Position{
					{Lat: -65, Lon: -162},
					{Lat: -66, Lon: -162},
				}},
				Summary: reinforcement.RouteSummary{UnsafeSteps: 1},
			}
			var buf bytes.Buffer
			So(page.Render(&buf, PageData{Routes: []store.Record{rec}, Episodes: 42}), ShouldBeNil)
			html := buf.String()
			So(html, ShouldContainSubstring, `/v1/routes/abc123`)
			So(html, ShouldContainSubstring, "18.0,155.0 18.0,156.0")
			So(html, ShouldContainSubstring, "(horizon)")
			So(html, ShouldContainSubstring, `class="unsafe"`)
			So(html, ShouldContainSubstring, ">42<")
			So(html, ShouldNotContainSubstring, "No routes yet.")
		})
	})

	Convey("Hyphenated view ids are rejected", t, func() {
		_, err := NewPage(NewRoutesTable("route-list"))
		So(errors.Is(err, ErrHyphenatedID), ShouldBeTrue)
	})
}
