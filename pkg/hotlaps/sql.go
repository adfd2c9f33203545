package hotlaps

import "database/sql"

func buildCreateHotlapsTable() string {
	return `CREATE TABLE IF NOT EXISTS hotlaps (
		track TEXT NOT NULL,
		config TEXT NOT NULL,
		car TEXT NOT NULL,
		driver TEXT NOT NULL,
		session_type TEXT NOT NULL,
		lap_time REAL NOT NULL,
		session_id TEXT NOT NULL,
		set_at TEXT NOT NULL,
		PRIMARY KEY (track, config, car, driver));`
}

func buildSelectBestCommand() (string, func(*sql.Rows) (float64, bool, error)) {
	return `SELECT lap_time FROM hotlaps
		WHERE track = ? AND config = ? AND car = ? AND driver = ?`, processSelectBestRows
}

func processSelectBestRows(rows *sql.Rows) (float64, bool, error) {
	defer rows.Close()

	// only can be one row
	if rows.Next() {
		var lapTime float64
		if err := rows.Scan(&lapTime); err != nil {
			return 0, false, err
		}
		return lapTime, true, nil
	}
	return 0, false, rows.Err()
}

func buildUpsertCommand() string {
	fields := "track, config, car, driver, session_type, lap_time, session_id, set_at"
	return `INSERT OR REPLACE INTO hotlaps (` + fields + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
}

func buildSelectTopCommand(track string) (string, []any, func(*sql.Rows) ([]Entry, error)) {
	fields := "track, config, car, driver, session_type, lap_time, session_id, set_at"
	if track == "" {
		return `SELECT ` + fields + ` FROM hotlaps ORDER BY lap_time ASC LIMIT ?`,
			nil, processSelectTopRows
	}
	return `SELECT ` + fields + ` FROM hotlaps WHERE track = ? ORDER BY lap_time ASC LIMIT ?`,
		[]any{track}, processSelectTopRows
}

func processSelectTopRows(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		err := rows.Scan(&e.Track, &e.Config, &e.Car, &e.Driver,
			&e.SessionType, &e.LapTime, &e.SessionID, &e.SetAt)
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
