// Package server exposes the engine over the network: a websocket
// endpoint for kiosk/display/admin clients and a small read-only HTTP
// surface for the catalog, health and CSV export.
package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hirameki/rail-mission/internal/game"
	"github.com/hirameki/rail-mission/internal/store"
)

// Server handles HTTP requests.
type Server struct {
	engine      *game.Engine
	db          store.DB
	hub         *Hub
	exportLimit int
	startTime   time.Time
}

// NewServer creates the HTTP server. exportLimit caps CSV export rows;
// zero selects 500.
func NewServer(engine *game.Engine, db store.DB, hub *Hub, exportLimit int) *Server {
	if exportLimit <= 0 {
		exportLimit = 500
	}
	return &Server{
		engine:      engine,
		db:          db,
		hub:         hub,
		exportLimit: exportLimit,
		startTime:   time.Now(),
	}
}

// Routes sets up the HTTP routes with proper middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// The websocket route stays outside this group; a timeout would
		// sever long-lived connections.
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/catalog", s.handleCatalog)
		r.Get("/health", s.handleHealth)
		r.Get("/export.csv", s.handleExport)
	})

	r.Get("/ws", s.hub.ServeWS)

	return r
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleCatalog serves the read-only catalog: cards, conditions, actions
// and metadata.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.engine.Catalog()
	s.writeJSON(w, http.StatusOK, catalogResponse{
		Cards:      cat.Cards,
		Conditions: cat.Conditions,
		Actions:    cat.Actions,
		Meta:       cat.Meta,
	})
}

type healthResponse struct {
	OK            bool   `json:"ok"`
	Time          int64  `json:"time"`
	Uptime        string `json:"uptime"`
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	Clients       int    `json:"clients"`
}

// handleHealth reports liveness plus a little system detail.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		OK:            true,
		Time:          time.Now().UnixMilli(),
		Uptime:        time.Since(s.startTime).Round(time.Second).String(),
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		Clients:       s.hub.ClientCount(),
	})
}

var exportHeader = []string{
	"time", "kioskId", "difficulty", "mode",
	"cardId", "cardTitle", "pass", "total", "code",
	"rescue", "crowd", "delay",
	"rule1_cond", "rule1_action", "rule2_cond", "rule2_action",
}

// handleExport streams the most recent completed runs as UTF-8 CSV with
// a byte-order mark for spreadsheet compatibility.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="results.csv"`)

	// BOM first so Excel detects UTF-8.
	if _, err := w.Write([]byte("\uFEFF")); err != nil {
		return
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return
	}

	recs, err := s.db.ListResults(s.exportLimit)
	if err != nil {
		cw.Flush()
		return
	}

	for _, rec := range recs {
		pass := "0"
		if rec.Pass {
			pass = "1"
		}
		row := []string{
			rec.Time.UTC().Format(time.RFC3339),
			rec.KioskID, rec.Difficulty, rec.Mode,
			rec.CardID, strings.ReplaceAll(rec.CardTitle, ",", " "),
			pass,
			strconv.Itoa(rec.Total),
			rec.Code,
			strconv.Itoa(rec.Rescue),
			strconv.Itoa(rec.Crowd),
			strconv.Itoa(rec.Delay),
			rec.Rule1.CondID, rec.Rule1.ActionID,
			rec.Rule2.CondID, rec.Rule2.ActionID,
		}
		if err := cw.Write(row); err != nil {
			return
		}
	}
	cw.Flush()
}
