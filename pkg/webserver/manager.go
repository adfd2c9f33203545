// Package webserver exposes a read-only HTTP query API over persisted
// session records: listing, detail, and CSV exports.
package webserver

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"iracingtelemetry/pkg/exporter"
	"iracingtelemetry/pkg/storage"
)

var addr = ":8080"

type Manager struct {
	r       *mux.Router
	dataDir string
}

func NewManager(dataDir string) *Manager {
	m := &Manager{
		r:       mux.NewRouter(),
		dataDir: dataDir,
	}

	m.r.HandleFunc("/sessions", m.handleListSessions).Methods(http.MethodGet)
	m.r.HandleFunc("/sessions/{id}", m.handleSession).Methods(http.MethodGet)
	m.r.HandleFunc("/sessions/{id}/laps/{lap}/csv", m.handleLapCSV).Methods(http.MethodGet)
	m.r.HandleFunc("/sessions/{id}/comparison", m.handleComparison).Methods(http.MethodGet)
	return m
}

func (m *Manager) Router() *mux.Router {
	return m.r
}

type sessionListItem struct {
	SessionID   string  `json:"sessionId"`
	Timestamp   string  `json:"timestamp"`
	TrackName   string  `json:"trackName"`
	TrackConfig string  `json:"trackConfig"`
	CarName     string  `json:"carName"`
	DriverName  string  `json:"driverName"`
	SessionType string  `json:"sessionType"`
	TotalLaps   int     `json:"totalLaps"`
	Duration    float64 `json:"duration"`
}

func (m *Manager) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := storage.ListAll(m.dataDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	items := make([]sessionListItem, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, sessionListItem{
			SessionID:   s.Metadata.SessionID,
			Timestamp:   s.Metadata.Timestamp,
			TrackName:   s.Metadata.TrackName,
			TrackConfig: s.Metadata.TrackConfig,
			CarName:     s.Metadata.CarName,
			DriverName:  s.Metadata.DriverName,
			SessionType: s.Metadata.SessionType,
			TotalLaps:   s.Metadata.TotalLaps,
			Duration:    s.Duration,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(items); err != nil {
		log.Printf("Error encoding session list: %s", err)
	}
}

func (m *Manager) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _, err := storage.LoadByID(m.dataDir, mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sess); err != nil {
		log.Printf("Error encoding session: %s", err)
	}
}

func (m *Manager) handleLapCSV(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sess, _, err := storage.LoadByID(m.dataDir, vars["id"])
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	laps, err := exporter.ParseLapSpec(vars["lap"])
	if err != nil || len(laps) != 1 {
		http.Error(w, "invalid lap number", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	if err := exporter.WriteLapCSV(cw, sess, laps[0]); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	cw.Flush()
}

func (m *Manager) handleComparison(w http.ResponseWriter, r *http.Request) {
	sess, _, err := storage.LoadByID(m.dataDir, mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	laps, err := exporter.ParseLapSpec(r.URL.Query().Get("laps"))
	if err != nil {
		http.Error(w, "invalid laps parameter", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	if err := exporter.WriteComparisonCSV(cw, sess, laps); err != nil {
		switch {
		case errors.Is(err, exporter.ErrInsufficientLaps):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, exporter.ErrLapNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	cw.Flush()
}

// Serve runs the query API until SIGINT, then shuts down gracefully.
func (m *Manager) Serve() {
	if os.Getenv("WEBSERVER_ADDRESS") != "" {
		addr = os.Getenv("WEBSERVER_ADDRESS")
	}
	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      m.r,
	}

	go func() {
		log.Printf("webserver listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil {
			log.Println(err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
	log.Println("webserver shutting down")
}
