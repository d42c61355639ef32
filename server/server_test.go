package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"searoute/grid_world"
	"searoute/logging"
	"searoute/reinforcement"
	"searoute/store"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

func newTestServer(mutate func(*Options)) (*Server, *httptest.Server) {
	params := reinforcement.DefaultParams()
	params.Seed = 3
	opts := Options{
		Params:      params,
		WeatherSeed: 17,
		Logger:      logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewServer(opts)
	So(err, ShouldBeNil)
	ts := httptest.NewServer(s.Handler())
	Reset(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func post(url string, body string) *http.Response {
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	So(err, ShouldBeNil)
	return resp
}

func decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	So(json.NewDecoder(resp.Body).Decode(v), ShouldBeNil)
}

func TestRoutes(t *testing.T) {
	Convey("Given a running server", t, func() {
		s, ts := newTestServer(nil)

		Convey("Health is reported", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			resp.Body.Close()
		})

		Convey("A route is computed, stored and listed", func() {
			resp := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":40}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			var rec store.Record
			decode(resp, &rec)

			So(rec.ID, ShouldNotBeEmpty)
			So(rec.Episodes, ShouldEqual, 40)
			So(len(rec.Route.Positions), ShouldBeBetweenOrEqual, 1, 21)
			So(rec.Route.Positions[0], ShouldResemble, grid_world.Position{Lat: -65, Lon: -162})
			So(len(rec.Weather), ShouldEqual, len(rec.Route.Positions))
			So(rec.Voyage.SpeedKnots, ShouldEqual, 16.0)
			So(rec.Voyage.DistanceNm, ShouldAlmostEqual, rec.DistanceKm/1.852, 1e-6)
			So(rec.Voyage.Hours, ShouldAlmostEqual, rec.Voyage.DistanceNm/16, 1e-6)
			So(rec.Voyage.FuelTons, ShouldAlmostEqual, rec.Voyage.DistanceNm*0.05, 1e-6)

			got, err := http.Get(ts.URL + "/v1/routes/" + rec.ID)
			So(err, ShouldBeNil)
			So(got.StatusCode, ShouldEqual, http.StatusOK)
			var stored store.Record
			decode(got, &stored)
			So(stored.ID, ShouldEqual, rec.ID)
			So(stored.Route.Reached, ShouldEqual, rec.Route.Reached)

			list, err := http.Get(ts.URL + "/v1/routes?limit=5")
			So(err, ShouldBeNil)
			var items struct {
				Items []store.Record `json:"items"`
			}
			decode(list, &items)
			So(len(items.Items), ShouldEqual, 1)
			So(items.Items[0].ID, ShouldEqual, rec.ID)
		})

		Convey("The legacy endpoint returns [lat, lon] pairs", func() {
			resp := post(ts.URL+"/calculate-route", `{"startPoint":[0,-50],"endPoint":[30,30]}`)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var out CalculateRouteResponse
			decode(resp, &out)
			So(out.ID, ShouldNotBeEmpty)
			So(out.Route[0], ShouldResemble, [2]float64{-65, -162})
			So(len(out.Route), ShouldBeLessThanOrEqualTo, 21)
		})

		Convey("Malformed requests are rejected with problems", func() {
			for _, body := range []string{
				`{"start":[0,-50,1],"end":[30,30]}`,
				`{"start":[0,-50]}`,
				`{"start":[0,-50],"end":[30,30],"episodes":-1}`,
				`{"start":[0,-50],"end":[30,30],"episodes":1000000}`,
				`not json`,
			} {
				resp := post(ts.URL+"/v1/routes", body)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "application/problem+json")
				var p Problem
				decode(resp, &p)
				So(p.Status, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("The index page lists stored routes", func() {
			resp := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":4}`)
			var rec store.Record
			decode(resp, &rec)

			page, err := http.Get(ts.URL + "/")
			So(err, ShouldBeNil)
			So(page.StatusCode, ShouldEqual, http.StatusOK)
			So(page.Header.Get("Content-Type"), ShouldStartWith, "text/html")
			body, _ := io.ReadAll(page.Body)
			page.Body.Close()
			So(string(body), ShouldContainSubstring, "/v1/routes/"+rec.ID)
		})

		Convey("Unknown routes are not found", func() {
			resp, err := http.Get(ts.URL + "/v1/routes/nope")
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			resp.Body.Close()
		})

		Convey("Training evolves the shared weather field", func() {
			origin := grid_world.Position{Lat: 0, Lon: -50}
			ahead := s.predict(origin, 5)
			resp := post(ts.URL+"/v1/routes", `{"start":[10,10],"end":[20,20],"episodes":5}`)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			resp.Body.Close()
			So(s.predict(origin, 0), ShouldResemble, ahead)
		})

		Convey("Seeding exploration and weather makes a request reproducible", func() {
			origin := grid_world.Position{Lat: 0, Lon: -50}
			before := s.predict(origin, 0)
			body := `{"start":[0,-50],"end":[-60,-150],"episodes":30,"seed":5,"weatherSeed":9}`
			var first, second store.Record
			decode(post(ts.URL+"/v1/routes", body), &first)
			decode(post(ts.URL+"/v1/routes", body), &second)
			So(first.ID, ShouldNotEqual, second.ID)
			So(second.Route, ShouldResemble, first.Route)
			So(second.Weather, ShouldResemble, first.Weather)
			So(s.predict(origin, 0), ShouldResemble, before)
		})

		Convey("Weather is forecast at a point", func() {
			resp, err := http.Get(ts.URL + "/v1/weather?lat=0&lon=-50&t=3")
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var out WeatherResponse
			decode(resp, &out)
			So(out.Time, ShouldEqual, 3)
			So(out.WaveHeight, ShouldBeBetweenOrEqual, 0.0, 10.0)
			So(out.WindSpeed, ShouldBeBetweenOrEqual, 0.0, 30.0)
			So(out.Safe, ShouldEqual, out.WaveHeight <= 5 && out.WindSpeed <= 20)

			bad, err := http.Get(ts.URL + "/v1/weather?lat=north&lon=-50")
			So(err, ShouldBeNil)
			So(bad.StatusCode, ShouldEqual, http.StatusBadRequest)
			bad.Body.Close()
		})

		Convey("Training status counts episodes", func() {
			resp := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":12}`)
			resp.Body.Close()
			st, err := http.Get(ts.URL + "/v1/training/status")
			So(err, ShouldBeNil)
			var status TrainingStatus
			decode(st, &status)
			So(status.Running, ShouldEqual, 0)
			So(status.Episodes, ShouldEqual, 12)
			So(status.BestReward, ShouldNotBeNil)
			So(*status.BestReward, ShouldBeLessThanOrEqualTo, -0.05)
			So(status.MeanReward, ShouldBeLessThanOrEqualTo, *status.BestReward)
			So(status.MeanReward, ShouldBeLessThanOrEqualTo, -0.05)
		})

		Convey("Preflight requests are answered for browsers", func() {
			req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/calculate-route", nil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			resp.Body.Close()
		})

		Convey("Metrics are exposed", func() {
			post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":3}`).Body.Close()
			resp, err := http.Get(ts.URL + "/metrics")
			So(err, ShouldBeNil)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			So(string(body), ShouldContainSubstring, "route_requests_total")
			So(string(body), ShouldContainSubstring, "training_episodes_total")
		})
	})

	Convey("Given a server allowing one route at a time", t, func() {
		_, ts := newTestServer(func(o *Options) {
			o.RoutesPerSecond = 0.001
			o.Burst = 1
		})

		Convey("Requests beyond the burst are throttled", func() {
			first := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":2}`)
			So(first.StatusCode, ShouldEqual, http.StatusCreated)
			first.Body.Close()
			second := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":2}`)
			So(second.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(second.Header.Get("Retry-After"), ShouldEqual, "1")
			second.Body.Close()
		})
	})

	Convey("Given a server with an unattainable training deadline", t, func() {
		_, ts := newTestServer(func(o *Options) {
			o.Training = &reinforcement.TrainingConfig{
				TrainingDeadline: map[string]string{"duration": "1ns"},
			}
		})

		Convey("Route requests fail as unavailable", func() {
			resp := post(ts.URL+"/v1/routes", `{"start":[0,-50],"end":[30,30],"episodes":500}`)
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			var p Problem
			decode(resp, &p)
			So(p.Title, ShouldEqual, "Training deadline exceeded")
		})
	})
}

func TestTrainingFeed(t *testing.T) {
	Convey("Given a subscriber to the training feed", t, func() {
		_, ts := newTestServer(nil)
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/training/ws"
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Progress of a route computation is streamed", func() {
			done := make(chan store.Record, 1)
			go func() {
				resp, err := http.Post(ts.URL+"/v1/routes", "application/json",
					bytes.NewBufferString(`{"start":[0,-50],"end":[30,30],"episodes":30}`))
				if err != nil {
					close(done)
					return
				}
				defer resp.Body.Close()
				var rec store.Record
				_ = json.NewDecoder(resp.Body).Decode(&rec)
				done <- rec
			}()

			So(conn.SetReadDeadline(time.Now().Add(5*time.Second)), ShouldBeNil)
			var ev ProgressEvent
			So(conn.ReadJSON(&ev), ShouldBeNil)
			So(ev.JobID, ShouldNotBeEmpty)
			So(ev.Episode, ShouldBeBetweenOrEqual, 1, 30)
			So(ev.Steps, ShouldBeBetweenOrEqual, 1, 20)

			rec := <-done
			So(rec.ID, ShouldEqual, ev.JobID)
		})
	})
}
