package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/DashNode-Org/teranode-monitor/pkg/metrics"
	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/rs/zerolog/log"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTmpl = template.Must(template.ParseFS(templatesFS, "templates/dashboard.html"))

type dashboardView struct {
	Node           string
	Record         status.StatusRecord
	Error          string
	FetchedAt      string
	RefreshSeconds int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	metrics.RecordAPIRequest("dashboard")
	snap := s.cache.Snapshot()

	view := dashboardView{
		Node:           s.cfg.NodeHost,
		Record:         snap.Record,
		FetchedAt:      "never",
		RefreshSeconds: int(s.cfg.RefreshInterval / time.Second),
	}
	if view.RefreshSeconds < 1 {
		view.RefreshSeconds = 1
	}
	if !snap.Record.FetchedAt.IsZero() {
		view.FetchedAt = snap.Record.FetchedAt.Format("2006-01-02 15:04:05")
	}
	if !snap.Record.Healthy {
		view.Error = string(snap.Diagnostics.LastErrorKind)
	}

	// render to a buffer so a template error never leaves a half-written page
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, view); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
