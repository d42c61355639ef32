// Package views renders the index page: server side templates for the stored routes, plus a small
// client bootstrap that follows training progress over the websocket feed.
package views

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"searoute/grid_world"
	"searoute/store"
)

// ViewComponent is one section of the page. Parse adds the component's named template to the
// parent, inheriting its func-map, and returns the template's name.
type ViewComponent interface {
	Parse(*template.Template) (string, error)
}

// ErrHyphenatedID is returned for component ids that html/template's `template` directive can't name.
var ErrHyphenatedID = errors.New("view ids must not contain hyphens")

// PageData is what the page is executed with.
type PageData struct {
	Routes   []store.Record
	Running  int64
	Episodes int64
}

// Page is the parsed index template.
type Page struct {
	tmpl *template.Template
	name string
}

var funcs = template.FuncMap{
	"coord": func(p grid_world.Position) string {
		return fmt.Sprintf("%.1f, %.1f", p.Lat, p.Lon)
	},
	// points projects positions equirectangularly onto a 360x180 viewBox.
	"points": func(ps []grid_world.Position) string {
		var sb strings.Builder
		for i, p := range ps {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%.1f,%.1f", p.Lon+180, 90-p.Lat)
		}
		return sb.String()
	},
}

// NewPage parses the views into a single page, in the order given.
func NewPage(views ...ViewComponent) (*Page, error) {
	root := template.New("root").Funcs(funcs)

	var body strings.Builder
	for _, vc := range views {
		name, err := vc.Parse(root)
		if err != nil {
			return nil, err
		}
		body.WriteString(`{{ template "` + name + `" . }}`)
	}

	name := "index"
	index := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<meta charset="utf-8">
			<link rel="icon" href="data:,">
			<title>searoute</title>
			<style>
				body { font-family: sans-serif; margin: 2em; }
				td, th { padding: 0.2em 0.8em; text-align: left; }
				svg { background: #e8f1f8; }
				.unsafe { color: #b00; }
			</style>
		</head>
		<body>
		` + body.String() + `
		</body>
	</html>
	{{ end }}
	`
	if _, err := root.Parse(index); err != nil {
		return nil, err
	}
	return &Page{tmpl: root, name: name}, nil
}

// Render executes the page.
func (p *Page) Render(w io.Writer, data PageData) error {
	return p.tmpl.ExecuteTemplate(w, p.name, data)
}

func checkID(id string) error {
	if strings.Contains(id, "-") {
		return fmt.Errorf("%q: %w", id, ErrHyphenatedID)
	}
	return nil
}

// RoutesTable lists stored routes with a sketch of each.
type RoutesTable struct {
	id string
}

func NewRoutesTable(id string) *RoutesTable {
	return &RoutesTable{id: template.HTMLEscapeString(id)}
}

func (rt *RoutesTable) Parse(parent *template.Template) (string, error) {
	if err := checkID(rt.id); err != nil {
		return "", err
	}
	_, err := parent.Parse(`
	{{ define "` + rt.id + `" }}
	<h2>Routes</h2>
	<table id="` + rt.id + `">
		<tr><th>id</th><th>from</th><th>to</th><th>steps</th><th>km</th><th>unsafe</th><th></th></tr>
		{{ range .Routes }}
		<tr>
			<td><a href="/v1/routes/{{ .ID }}">{{ .ID }}</a></td>
			<td>{{ coord .Start }}</td>
			<td>{{ coord .End }}</td>
			<td>{{ .Route.Steps }}{{ if not .Route.Reached }} (horizon){{ end }}</td>
			<td>{{ printf "%.0f" .DistanceKm }}</td>
			<td class="{{ if .Summary.UnsafeSteps }}unsafe{{ end }}">{{ .Summary.UnsafeSteps }}</td>
			<td>
				<svg width="180" height="90" viewBox="0 0 360 180">
					<polyline points="{{ points .Route.Positions }}" fill="none" stroke="#036" stroke-width="2"/>
				</svg>
			</td>
		</tr>
		{{ else }}
		<tr><td colspan="7">No routes yet.</td></tr>
		{{ end }}
	</table>
	{{ end }}
	`)
	return rt.id, err
}

// ProgressPanel shows the latest training episode, updated from the websocket feed.
type ProgressPanel struct {
	id       string
	feedPath string
}

func NewProgressPanel(id, feedPath string) *ProgressPanel {
	return &ProgressPanel{id: template.HTMLEscapeString(id), feedPath: feedPath}
}

func (pp *ProgressPanel) Parse(parent *template.Template) (string, error) {
	if err := checkID(pp.id); err != nil {
		return "", err
	}
	_, err := parent.Parse(`
	{{ define "` + pp.id + `" }}
	<h2>Training</h2>
	<p id="` + pp.id + `">
		running <span id="` + pp.id + `_running">{{ .Running }}</span>,
		episodes <span id="` + pp.id + `_episodes">{{ .Episodes }}</span>,
		job <span id="` + pp.id + `_job">-</span>,
		episode <span id="` + pp.id + `_episode">-</span>,
		reward <span id="` + pp.id + `_reward">-</span>
	</p>
	<script>
		(function () {
			const scheme = location.protocol === "https:" ? "wss://" : "ws://";
			const ws = new WebSocket(scheme + location.host + "` + pp.feedPath + `");
			const set = (suffix, value) => {
				document.getElementById("` + pp.id + `_" + suffix).textContent = value;
			};
			ws.onerror = function (event) {
				console.log("WebSocket error: ", event);
			};
			ws.onmessage = function (event) {
				const ev = JSON.parse(event.data);
				set("job", ev.jobId);
				set("episode", ev.episode);
				set("reward", ev.totalReward.toFixed(2));
			};
		})();
	</script>
	{{ end }}
	`)
	return pp.id, err
}
