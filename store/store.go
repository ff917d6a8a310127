// Package store provides SQLite persistence for kongress-cli: the key/value
// settings and the favorites calendars of each conference.
package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/robertmeta/kongress-cli/log"
	"github.com/robertmeta/kongress-cli/model"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the SQLite database.
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger

	mu        sync.Mutex
	calendars map[string]*Calendar
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:        db,
		log:       logrus.StandardLogger(),
		calendars: make(map[string]*Calendar),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// SetLogger replaces the logger used for diagnostics.
func (s *Store) SetLogger(l logrus.FieldLogger) {
	s.log = l
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// gooseLogger sends goose progress output to logrus instead of stdout.
type gooseLogger struct {
	log logrus.FieldLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(format, v...)
}

// migrate applies the embedded migrations.
func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: s.log})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Settings returns the key/value settings backed by this store.
func (s *Store) Settings() *Settings {
	return &Settings{db: s.db}
}

// OpenCalendar loads the favorites calendar with the given ID. Opening the
// same ID twice returns the same working copy.
func (s *Store) OpenCalendar(id string, loc *time.Location) (*Calendar, error) {
	if id == "" {
		return nil, errors.New("calendar ID is required")
	}
	if loc == nil {
		loc = time.UTC
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cal, ok := s.calendars[id]; ok {
		return cal, nil
	}

	events, err := s.loadEvents(id)
	if err != nil {
		return nil, err
	}

	cal := newCalendar(id, loc)
	for _, e := range events {
		cal.Upsert(e)
	}
	s.calendars[id] = cal
	return cal, nil
}

// Save writes the open calendar with the given ID to the database and
// reports whether it succeeded. Failures are logged.
func (s *Store) Save(calendarID string) bool {
	logger := s.log.WithField(log.FldCalendar, calendarID)

	s.mu.Lock()
	cal, ok := s.calendars[calendarID]
	s.mu.Unlock()

	if !ok {
		logger.Warn("Cannot save a calendar that is not open")
		return false
	}

	if err := s.SaveCalendar(cal); err != nil {
		logger.WithError(err).Error("Failed to save calendar")
		return false
	}
	return true
}

// SaveCalendar replaces the stored events of cal with its current contents.
func (s *Store) SaveCalendar(cal *Calendar) error {
	events := cal.Events()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events WHERE calendar_id = ?", cal.ID()); err != nil {
		return fmt.Errorf("failed to clear calendar %s: %w", cal.ID(), err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO events (calendar_id, uid, start_time, end_time, summary, description, categories, location, url, all_day)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		_, err := stmt.Exec(
			cal.ID(), e.UID, timeToUnix(e.Start), timeToUnix(e.End),
			e.Summary, e.Description, e.Categories, e.Location, e.URL, boolToInt(e.AllDay),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", e.UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit calendar %s: %w", cal.ID(), err)
	}
	return nil
}

const eventColumns = "calendar_id, uid, start_time, end_time, summary, description, categories, location, url, all_day"

// loadEvents reads all events of a calendar.
func (s *Store) loadEvents(calendarID string) ([]model.Event, error) {
	rows, err := s.db.Query(
		"SELECT "+eventColumns+" FROM events WHERE calendar_id = ? ORDER BY start_time, uid",
		calendarID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		_, e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetEvent retrieves a stored event by calendar and UID.
func (s *Store) GetEvent(calendarID, uid string) (*model.Event, error) {
	row := s.db.QueryRow(
		"SELECT "+eventColumns+" FROM events WHERE calendar_id = ? AND uid = ?",
		calendarID, uid,
	)

	_, e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", uid, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row scanner) (string, model.Event, error) {
	var (
		calendarID string
		e          model.Event
		start, end sql.NullInt64
		allDayInt  int
	)

	err := row.Scan(&calendarID, &e.UID, &start, &end, &e.Summary, &e.Description, &e.Categories, &e.Location, &e.URL, &allDayInt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", e, err
	}
	if err != nil {
		return "", e, fmt.Errorf("failed to scan event: %w", err)
	}

	e.Start = unixToTime(start)
	e.End = unixToTime(end)
	e.AllDay = intToBool(allDayInt)
	return calendarID, e, nil
}

// Helper functions for boolean<->int conversion (SQLite doesn't have BOOLEAN type)
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}

// Zero times are stored as NULL.
func timeToUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func unixToTime(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).UTC()
}
