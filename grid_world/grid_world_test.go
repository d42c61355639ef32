package grid_world

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCodec(t *testing.T) {
	Convey("Given a 50x50 codec", t, func() {
		codec := NewCodec(50)

		Convey("Encode always returns a state in [0, N*N)", func() {
			for lat := -90.0; lat < 90; lat += 2.5 {
				for lon := -180.0; lon < 180; lon += 3.7 {
					s := codec.Encode(Position{Lat: lat, Lon: lon})
					So(int(s), ShouldBeGreaterThanOrEqualTo, 0)
					So(int(s), ShouldBeLessThan, codec.NumStates())
				}
			}
		})

		Convey("Out of range positions are wrapped rather than rejected", func() {
			for _, p := range []Position{
				{Lat: -91, Lon: -181},
				{Lat: 90, Lon: 180},
				{Lat: 500, Lon: -900},
				{Lat: -1000.5, Lon: 1000.5},
			} {
				s := codec.Encode(p)
				So(int(s), ShouldBeBetweenOrEqual, 0, codec.NumStates()-1)
			}
		})

		Convey("The origin example quantizes to row 25, column 18", func() {
			row, col := codec.Cell(Position{Lat: 0, Lon: -50})
			So(row, ShouldEqual, 25)
			So(col, ShouldEqual, 18)
			So(codec.Encode(Position{Lat: 0, Lon: -50}), ShouldEqual, State(25*50+18))
		})

		Convey("Decode subtracts the offsets from row and column", func() {
			p := codec.Decode(codec.Encode(Position{Lat: 0, Lon: -50}))
			So(p, ShouldResemble, Position{Lat: -65, Lon: -162})
		})

		Convey("Positions in the same cell encode identically", func() {
			a := codec.Encode(Position{Lat: 8, Lon: 17})
			b := codec.Encode(Position{Lat: 10, Lon: 20})
			So(a, ShouldEqual, b)
		})

		Convey("Stepping off an edge lands in the opposite edge's cell", func() {
			south := Position{Lat: -90, Lon: 0}
			stepped := codec.Step(south, North)
			So(stepped.Lat, ShouldEqual, -91)
			row, _ := codec.Cell(stepped)
			So(row, ShouldEqual, 49)

			west := Position{Lat: 0, Lon: -180}
			row, col := codec.Cell(codec.Step(west, West))
			So(col, ShouldEqual, 49)
			So(row, ShouldEqual, 25)

			east := Position{Lat: 0, Lon: 179.9}
			_, col = codec.Cell(codec.Step(east, East))
			So(col, ShouldEqual, 0)
		})

		Convey("RowCol is consistent with Encode", func() {
			s := codec.Encode(Position{Lat: 45, Lon: 90})
			row, col := codec.RowCol(s)
			r2, c2 := codec.Cell(Position{Lat: 45, Lon: 90})
			So(row, ShouldEqual, r2)
			So(col, ShouldEqual, c2)
		})
	})
}

func TestActions(t *testing.T) {
	Convey("The eight compass actions", t, func() {
		Convey("Have unit deltas in compass order", func() {
			expected := [][2]float64{{-1, 0}, {-1, 1}, {0, 1}, {1, 1}, {1, 0}, {1, -1}, {0, -1}, {-1, -1}}
			for a := North; a < NumActions; a++ {
				dlat, dlon := a.Delta()
				So([2]float64{dlat, dlon}, ShouldResemble, expected[a])
			}
		})

		Convey("Step is not clamped", func() {
			codec := NewCodec(10)
			p := codec.Step(Position{Lat: 89.5, Lon: 179.5}, SouthEast)
			So(p, ShouldResemble, Position{Lat: 90.5, Lon: 180.5})
		})

		Convey("Have readable names", func() {
			So(North.String(), ShouldEqual, "N")
			So(NorthWest.String(), ShouldEqual, "NW")
			So(Action(12).String(), ShouldEqual, "Action(12)")
		})
	})
}
