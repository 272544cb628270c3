package kpi

import (
	"database/sql"
	"time"

	core "github.com/kilianp07/consolidator/core/metrics/eco"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists KPI records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS eco_kpi (
        data_center TEXT,
        day INTEGER,
        renewable REAL,
        brown REAL,
        carbon REAL,
        PRIMARY KEY(data_center, day)
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Add accumulates the record into its data center and day.
func (s *SQLiteStore) Add(r core.Record) error {
	d := core.Day(r.Date)
	_, err := s.db.Exec(`INSERT INTO eco_kpi (data_center, day, renewable, brown, carbon)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(data_center, day) DO UPDATE SET
            renewable = renewable + excluded.renewable,
            brown = brown + excluded.brown,
            carbon = carbon + excluded.carbon`,
		r.DataCenter, d.Unix(), r.RenewableWh, r.BrownWh, r.Carbon)
	return err
}

// Query returns records in the range [start,end].
func (s *SQLiteStore) Query(dataCenter string, start, end time.Time) ([]core.Record, error) {
	start = core.Day(start)
	end = core.Day(end)
	rows, err := s.db.Query(`SELECT data_center, day, renewable, brown, carbon
        FROM eco_kpi WHERE data_center = ? AND day >= ? AND day <= ? ORDER BY day`,
		dataCenter, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var r core.Record
		var ts int64
		if err := rows.Scan(&r.DataCenter, &ts, &r.RenewableWh, &r.BrownWh, &r.Carbon); err != nil {
			return nil, err
		}
		r.Date = time.Unix(ts, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// DataCenters lists the data centers having at least one record.
func (s *SQLiteStore) DataCenters() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT data_center FROM eco_kpi ORDER BY data_center`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var dc string
		if err := rows.Scan(&dc); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
