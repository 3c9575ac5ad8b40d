// Package store persists sensor readings, Environment Agency readings, and
// subscriber contacts in SQLite.
//
// Readings are append-only; there is no update or delete path and no
// uniqueness constraint on device+timestamp, so broker redelivery can produce
// duplicate rows. Accepted limitation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kentwatersensors/floodwatch/internal/domain"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by the Latest* queries when no row matches.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database connection and schema lifecycle.
// Safe for concurrent writers; SQLite serializes through a single connection.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures baseline tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sensor_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			distance_to_sensor_mm INTEGER NOT NULL,
			water_level_mm INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			received_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sensor_readings_device_time ON sensor_readings(device_id, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS agency_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			station_reference TEXT NOT NULL,
			reading_value_mm REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			received_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agency_readings_station_time ON agency_readings(station_reference, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			contact_number TEXT,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			county TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// InsertSensorReading appends one decoded telemetry reading.
func (s *Store) InsertSensorReading(ctx context.Context, r domain.SensorReading) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sensor_readings (device_id, distance_to_sensor_mm, water_level_mm, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		r.DeviceID, r.DistanceToSensorMM, r.WaterLevelMM, formatTime(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert sensor reading: %w", err)
	}
	return nil
}

// InsertAgencyReadings appends a poll cycle's readings in one transaction.
// All rows commit together or none do.
func (s *Store) InsertAgencyReadings(ctx context.Context, readings []domain.AgencyReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, r := range readings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agency_readings (station_reference, reading_value_mm, recorded_at)
			 VALUES (?, ?, ?)`,
			r.StationReference, r.ReadingValueMM, formatTime(r.Timestamp),
		); err != nil {
			return fmt.Errorf("insert agency reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit agency readings: %w", err)
	}
	return nil
}

// AddSubscriber registers a contact for the daily digest.
func (s *Store) AddSubscriber(ctx context.Context, sub domain.Subscriber) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (name, email, contact_number, latitude, longitude, county)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.Name, nullable(sub.Email), nullable(sub.ContactNumber), sub.Latitude, sub.Longitude, sub.County,
	)
	if err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

// Subscribers lists every registered contact.
func (s *Store) Subscribers(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(contact_number, ''), latitude, longitude, county
		 FROM subscribers ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.ContactNumber, &sub.Latitude, &sub.Longitude, &sub.County); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// LatestSensorReading returns the most recent reading for a device.
func (s *Store) LatestSensorReading(ctx context.Context, deviceID string) (domain.SensorReading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT device_id, distance_to_sensor_mm, water_level_mm, recorded_at
		 FROM sensor_readings WHERE device_id = ?
		 ORDER BY recorded_at DESC LIMIT 1`,
		deviceID,
	)
	return scanSensorReading(row)
}

// SensorReadingsBetween returns a device's readings in [start, end], oldest first.
func (s *Store) SensorReadingsBetween(ctx context.Context, deviceID string, start, end time.Time) ([]domain.SensorReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, distance_to_sensor_mm, water_level_mm, recorded_at
		 FROM sensor_readings
		 WHERE device_id = ? AND recorded_at >= ? AND recorded_at <= ?
		 ORDER BY recorded_at`,
		deviceID, formatTime(start), formatTime(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query sensor readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.SensorReading
	for rows.Next() {
		r, err := scanSensorReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// LatestAgencyReading returns the most recent reading for a station.
func (s *Store) LatestAgencyReading(ctx context.Context, stationReference string) (domain.AgencyReading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT station_reference, reading_value_mm, recorded_at
		 FROM agency_readings WHERE station_reference = ?
		 ORDER BY recorded_at DESC LIMIT 1`,
		stationReference,
	)
	return scanAgencyReading(row)
}

// AgencyReadingsBetween returns a station's readings in [start, end], oldest first.
func (s *Store) AgencyReadingsBetween(ctx context.Context, stationReference string, start, end time.Time) ([]domain.AgencyReading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station_reference, reading_value_mm, recorded_at
		 FROM agency_readings
		 WHERE station_reference = ? AND recorded_at >= ? AND recorded_at <= ?
		 ORDER BY recorded_at`,
		stationReference, formatTime(start), formatTime(end),
	)
	if err != nil {
		return nil, fmt.Errorf("query agency readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.AgencyReading
	for rows.Next() {
		r, err := scanAgencyReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSensorReading(row scanner) (domain.SensorReading, error) {
	var r domain.SensorReading
	var recordedAt string
	err := row.Scan(&r.DeviceID, &r.DistanceToSensorMM, &r.WaterLevelMM, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SensorReading{}, ErrNotFound
	}
	if err != nil {
		return domain.SensorReading{}, fmt.Errorf("scan sensor reading: %w", err)
	}
	r.Timestamp, err = parseTime(recordedAt)
	if err != nil {
		return domain.SensorReading{}, err
	}
	return r, nil
}

func scanAgencyReading(row scanner) (domain.AgencyReading, error) {
	var r domain.AgencyReading
	var recordedAt string
	err := row.Scan(&r.StationReference, &r.ReadingValueMM, &recordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AgencyReading{}, ErrNotFound
	}
	if err != nil {
		return domain.AgencyReading{}, fmt.Errorf("scan agency reading: %w", err)
	}
	r.Timestamp, err = parseTime(recordedAt)
	if err != nil {
		return domain.AgencyReading{}, err
	}
	return r, nil
}

// timeLayout is RFC3339 with fixed-width nanoseconds. RFC3339Nano trims
// trailing zeros, which breaks the lexical ordering the queries rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamps are stored as fixed-width UTC text so the period queries can
// compare lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
