package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"time"

	apierrors "marketlens/internal/errors"
	"marketlens/internal/services"
	"marketlens/internal/timeseries"
)

// defaultDashboardYears is how far back the dashboard looks when the
// request carries no window.
const defaultDashboardYears = 5

// DashboardHandler renders the full risk dashboard as one HTML page with
// every stored chart plotted via Plotly, grouped by section.
type DashboardHandler struct {
	charts       *services.ChartService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	tmpl         *template.Template
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(charts *services.ChartService, logger *slog.Logger,
	errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		charts:       charts,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
		tmpl:         template.Must(template.New("dashboard").Parse(dashboardTemplate)),
	}
}

type dashboardChart struct {
	Slug   string
	Title  string
	Traces template.JS
	Style  template.JS
}

type dashboardGroup struct {
	Name   string
	Charts []dashboardChart
}

type dashboardPage struct {
	Generated string
	Start     string
	End       string
	Groups    []dashboardGroup
}

// Dashboard handles GET /risk/html. Charts that fail to evaluate are
// skipped with a log line so one broken expression cannot take down the
// whole page.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if start.IsZero() {
		start = time.Now().UTC().AddDate(-defaultDashboardYears, 0, 0)
	}

	charts, err := h.charts.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	page := dashboardPage{
		Generated: time.Now().UTC().Format(time.RFC3339),
		Start:     start.Format(dateLayout),
	}
	if !end.IsZero() {
		page.End = end.Format(dateLayout)
	}

	var current *dashboardGroup
	for _, c := range charts {
		_, frame, err := h.charts.Render(r.Context(), c.Slug, start, end)
		if err != nil {
			h.logger.WarnContext(r.Context(), "chart skipped",
				slog.String("slug", c.Slug),
				slog.String("error", err.Error()))
			continue
		}

		traces, err := plotlyTraces(frame)
		if err != nil {
			h.logger.WarnContext(r.Context(), "chart serialization failed",
				slog.String("slug", c.Slug),
				slog.String("error", err.Error()))
			continue
		}

		style := template.JS("{}")
		if len(c.Style) > 0 {
			style = template.JS(c.Style)
		}

		if current == nil || current.Name != c.Group {
			page.Groups = append(page.Groups, dashboardGroup{Name: c.Group})
			current = &page.Groups[len(page.Groups)-1]
		}
		current.Charts = append(current.Charts, dashboardChart{
			Slug:   c.Slug,
			Title:  c.Title,
			Traces: traces,
			Style:  style,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, page); err != nil {
		h.logger.ErrorContext(r.Context(), "render dashboard",
			slog.String("error", err.Error()))
	}
}

// plotlyTraces serializes a frame as a Plotly trace array. NaN becomes
// null so Plotly leaves gaps instead of choking on invalid JSON.
func plotlyTraces(f timeseries.Frame) (template.JS, error) {
	cal := f.Calendar()
	dates := make([]string, len(cal))
	for i, d := range cal {
		dates[i] = d.Format(dateLayout)
	}

	type trace struct {
		X    []string      `json:"x"`
		Y    []interface{} `json:"y"`
		Name string        `json:"name"`
		Mode string        `json:"mode"`
		Type string        `json:"type"`
	}

	traces := make([]trace, 0, f.Width())
	for _, name := range f.Names() {
		col, _ := f.Column(name)
		ys := make([]interface{}, col.Len())
		for i, v := range col.Values() {
			if math.IsNaN(v) {
				ys[i] = nil
			} else {
				ys[i] = v
			}
		}
		traces = append(traces, trace{X: dates, Y: ys, Name: name, Mode: "lines", Type: "scatter"})
	}

	raw, err := json.Marshal(traces)
	if err != nil {
		return "", err
	}
	return template.JS(raw), nil
}

const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Risk Dashboard</title>
<script src="https://cdn.plot.ly/plotly-2.32.0.min.js"></script>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 0; background: #f5f6f8; }
header { background: #1a2633; color: #fff; padding: 12px 24px; }
header h1 { margin: 0; font-size: 18px; }
header .meta { font-size: 12px; color: #9db0c4; }
h2 { margin: 24px 24px 8px; font-size: 15px; color: #1a2633; text-transform: uppercase; letter-spacing: 0.05em; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(560px, 1fr)); gap: 16px; padding: 0 24px 24px; }
.card { background: #fff; border-radius: 6px; box-shadow: 0 1px 3px rgba(0,0,0,0.12); padding: 8px; }
.card .chart { height: 360px; }
</style>
</head>
<body>
<header>
<h1>Risk Dashboard</h1>
<div class="meta">Generated {{.Generated}} | Window {{.Start}}{{if .End}} to {{.End}}{{end}}</div>
</header>
{{range .Groups}}
<h2>{{.Name}}</h2>
<div class="grid">
{{range .Charts}}
<div class="card"><div id="chart-{{.Slug}}" class="chart"></div></div>
{{end}}
</div>
{{end}}
<script>
{{range .Groups}}{{range .Charts}}
Plotly.newPlot("chart-{{.Slug}}", {{.Traces}}, Object.assign({
  title: {text: {{.Title}}, font: {size: 14}},
  margin: {l: 48, r: 16, t: 40, b: 32},
  showlegend: true,
  legend: {orientation: "h", y: -0.15}
}, {{.Style}}), {responsive: true, displaylogo: false});
{{end}}{{end}}
</script>
</body>
</html>
`
