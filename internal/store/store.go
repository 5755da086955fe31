// Package store provides SQLite persistence for hostwatch.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/darshan-rambhia/hostwatch/internal/model"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding classifications and the alert log.
type Store struct {
	db *sql.DB
}

// New opens or creates a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertPrediction records one classification. Rows are keyed by result ID;
// a repeated ID replaces the earlier row.
func (s *Store) InsertPrediction(ctx context.Context, r model.ClassificationResult) error {
	probs, err := json.Marshal(r.Probabilities)
	if err != nil {
		return fmt.Errorf("marshaling probabilities: %w", err)
	}
	v := r.Features
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO predictions
		(id, ts, category, code, confidence, cpu_usage, ram_usage, disk_usage, level,
		 temperature, read_errors, write_errors, reallocated_sectors, event_id, probabilities_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.Unix(), r.Label.String(), r.Label.Code(), r.Confidence,
		v.CPUUsage, v.RAMUsage, v.DiskUsage, v.Level, v.Temperature,
		v.ReadErrors, v.WriteErrors, v.ReallocatedSectors, v.EventID, string(probs),
	)
	if err != nil {
		return fmt.Errorf("inserting prediction %s: %w", r.ID, err)
	}
	return nil
}

// RecentPredictions returns up to limit classifications, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]model.PredictionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, category, confidence, cpu_usage, ram_usage, disk_usage, level,
		       temperature, read_errors, write_errors, reallocated_sectors, event_id
		FROM predictions
		ORDER BY ts DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying predictions: %w", err)
	}
	defer rows.Close()

	records := []model.PredictionRecord{}
	for rows.Next() {
		var (
			p        model.PredictionRecord
			category string
			v        = &p.Features
		)
		if err := rows.Scan(&p.ID, &p.Timestamp, &category, &p.Confidence,
			&v.CPUUsage, &v.RAMUsage, &v.DiskUsage, &v.Level, &v.Temperature,
			&v.ReadErrors, &v.WriteErrors, &v.ReallocatedSectors, &v.EventID); err != nil {
			return nil, fmt.Errorf("scanning prediction: %w", err)
		}
		p.Label = model.NormalizeCategory(category)
		records = append(records, p)
	}
	return records, rows.Err()
}

// CategoryCounts returns how many classifications per category were stored
// at or after since (Unix seconds).
func (s *Store) CategoryCounts(ctx context.Context, since int64) (map[model.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM predictions
		WHERE ts >= ?
		GROUP BY category`, since)
	if err != nil {
		return nil, fmt.Errorf("counting predictions: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Category]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		counts[model.NormalizeCategory(category)] += n
	}
	return counts, rows.Err()
}

// InsertAlert logs a fired or resolved alert.
func (s *Store) InsertAlert(ctx context.Context, n model.Notification) error {
	resolved := 0
	if n.Resolved {
		resolved = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_log (ts, alert_type, subject, message, severity, resolved)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.Timestamp.Unix(), n.AlertType, n.Subject, n.Message, n.Severity, resolved,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// AlertRecord is one row of the alert log.
type AlertRecord struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"ts"`
	AlertType string `json:"alert_type"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Resolved  bool   `json:"resolved"`
}

// RecentAlerts returns up to limit alert log entries, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, alert_type, subject, message, severity, resolved
		FROM alert_log
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []AlertRecord{}
	for rows.Next() {
		var a AlertRecord
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.AlertType, &a.Subject, &a.Message, &a.Severity, &a.Resolved); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
