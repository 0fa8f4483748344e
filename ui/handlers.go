package main

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Handler serves the monitor's dashboard and JSON API.
type Handler struct {
	inspector *Inspector
	page      *template.Template
}

// NewHandler returns a Handler backed by inspector.
func NewHandler(inspector *Inspector) (*Handler, error) {
	tmpl, err := template.New("dashboard").Parse(dashboardHTML)
	if err != nil {
		return nil, err
	}
	return &Handler{inspector: inspector, page: tmpl}, nil
}

// RegisterRoutes registers HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleDashboard)
	mux.HandleFunc("/api/stats", h.handleAPIStats)
	mux.HandleFunc("/api/tubes", h.handleAPITubes)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	stats, err := h.inspector.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	tubes, _ := h.inspector.GetTubes()

	data := map[string]interface{}{
		"Stats": stats,
		"Tubes": tubes,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.inspector.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *Handler) handleAPITubes(w http.ResponseWriter, r *http.Request) {
	tubes, err := h.inspector.GetTubes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tubes)
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>beanq monitor</title></head>
<body>
	<h1>beanq</h1>
	<p>version {{.Stats.Version}}, uptime {{.Stats.Uptime}}s, draining={{.Stats.Draining}}</p>
	<p>jobs: ready={{.Stats.CurrentJobsReady}} reserved={{.Stats.CurrentJobsReserved}}
	   delayed={{.Stats.CurrentJobsDelayed}} buried={{.Stats.CurrentJobsBuried}} total={{.Stats.TotalJobs}}</p>
	<p>tubes={{.Stats.CurrentTubes}} connections={{.Stats.CurrentConnections}}</p>
	<h2>Tubes</h2>
	<table border="1" cellpadding="4">
		<tr><th>name</th><th>ready</th><th>reserved</th><th>delayed</th><th>buried</th><th>total</th><th>pause</th></tr>
		{{range .Tubes}}
		<tr>
			<td>{{.Name}}</td><td>{{.CurrentJobsReady}}</td><td>{{.CurrentJobsReserved}}</td>
			<td>{{.CurrentJobsDelayed}}</td><td>{{.CurrentJobsBuried}}</td><td>{{.TotalJobs}}</td><td>{{.Pause}}</td>
		</tr>
		{{end}}
	</table>
</body>
</html>
`
