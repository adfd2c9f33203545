// Package hotlaps keeps a persistent best-lap leaderboard across sessions,
// one entry per track/config/car/driver combination.
package hotlaps

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"iracingtelemetry/pkg/session"
)

const DefaultDBName = "./hotlaps.db"

// Entry is one leaderboard row.
type Entry struct {
	Track       string
	Config      string
	Car         string
	Driver      string
	SessionType string
	LapTime     float64
	SessionID   string
	SetAt       string
}

type Manager struct {
	db *sql.DB
	mu sync.Mutex
}

func NewManager(dbName string) (*Manager, error) {
	if dbName == "" {
		dbName = DefaultDBName
	}
	db, err := sql.Open("sqlite3", dbName)
	if err != nil {
		log.Printf("error opening hotlaps database: %s\n", err)
		return nil, err
	}

	if _, err := db.Exec(buildCreateHotlapsTable()); err != nil {
		log.Printf("error init hotlaps database: %s\n", err)
		return nil, err
	}

	return &Manager{db: db}, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Close()
}

// RecordSession offers every completed lap of a finalized session to the
// leaderboard and keeps the minimum per combination. It returns the number
// of entries that improved.
func (m *Manager) RecordSession(sess *session.Session) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	best, ok := sess.BestLap()
	if !ok {
		return 0, nil
	}

	meta := sess.Metadata
	query, read := buildSelectBestCommand()
	rows, err := m.db.Query(query, meta.TrackName, meta.TrackConfig, meta.CarName, meta.DriverName)
	if err != nil {
		return 0, err
	}
	current, exists, err := read(rows)
	if err != nil {
		return 0, err
	}
	if exists && current <= *best.LapTime {
		return 0, nil
	}

	_, err = m.db.Exec(buildUpsertCommand(),
		meta.TrackName, meta.TrackConfig, meta.CarName, meta.DriverName,
		meta.SessionType, *best.LapTime, meta.SessionID, meta.Timestamp)
	if err != nil {
		log.Printf("error updating hotlaps database: %s\n", err)
		return 0, err
	}
	return 1, nil
}

// Top lists the fastest entries, ascending by lap time, optionally filtered
// by track name.
func (m *Manager) Top(track string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	query, args, read := buildSelectTopCommand(track)
	args = append(args, limit)
	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return read(rows)
}
