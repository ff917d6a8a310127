package store

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/robertmeta/kongress-cli/model"
)

// durationPattern matches duration strings like "7d", "2w", "3m", "1y"
var durationPattern = regexp.MustCompile(`^(\d+)([hdwmy])$`)

// QueryOptions specifies which stored favorites to list.
type QueryOptions struct {
	CalendarID string
	From       *int64 // Unix timestamp, inclusive
	To         *int64 // Unix timestamp, exclusive
	Limit      int
	Offset     int
}

// ParseDuration parses a duration string like "12h", "7d", "2w", "3m", "1y".
//
// Supported units:
//   - h: hours
//   - d: days
//   - w: weeks (7 days)
//   - m: months (30 days, approximation)
//   - y: years (365 days, approximation)
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("duration string is empty")
	}

	matches := durationPattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("invalid duration format: %s (expected format: <number><unit>, e.g., 12h, 7d, 2w)", s)
	}

	num, err := strconv.Atoi(matches[1])
	if err != nil || num < 0 {
		return 0, fmt.Errorf("invalid number in duration: %s", matches[1])
	}

	day := 24 * time.Hour
	switch matches[2] {
	case "h":
		return time.Duration(num) * time.Hour, nil
	case "d":
		return time.Duration(num) * day, nil
	case "w":
		return time.Duration(num) * 7 * day, nil
	case "m":
		return time.Duration(num) * 30 * day, nil
	case "y":
		return time.Duration(num) * 365 * day, nil
	default:
		return 0, fmt.Errorf("invalid duration unit: %s (expected h, d, w, m, or y)", matches[2])
	}
}

// ParseDay parses a YYYY-MM-DD date and returns midnight of that day in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q (expected YYYY-MM-DD): %w", s, err)
	}
	return day, nil
}

// BuildQueryOptions constructs QueryOptions from CLI flags. day selects one
// calendar day in loc; within selects the window [now, now+within). They
// are mutually exclusive.
func BuildQueryOptions(calendarID, day, within string, loc *time.Location, limit, offset int, now time.Time) (QueryOptions, error) {
	opts := QueryOptions{
		CalendarID: calendarID,
		Limit:      limit,
		Offset:     offset,
	}

	if day != "" && within != "" {
		return opts, errors.New("--day and --within cannot be combined")
	}

	if day != "" {
		start, err := ParseDay(day, loc)
		if err != nil {
			return opts, err
		}
		from, to := start.Unix(), start.AddDate(0, 0, 1).Unix()
		opts.From, opts.To = &from, &to
	}

	if within != "" {
		d, err := ParseDuration(within)
		if err != nil {
			return opts, fmt.Errorf("failed to parse --within flag: %w", err)
		}
		from, to := now.Unix(), now.Add(d).Unix()
		opts.From, opts.To = &from, &to
	}

	return opts, nil
}

// ListEvents retrieves saved favorites, ordered by start time. A time window
// matches events overlapping it; undated events only match without one.
func (s *Store) ListEvents(opts QueryOptions) ([]model.Event, error) {
	query := "SELECT " + eventColumns + " FROM events WHERE 1=1"
	args := []interface{}{}

	if opts.CalendarID != "" {
		query += " AND calendar_id = ?"
		args = append(args, opts.CalendarID)
	}

	if opts.To != nil {
		query += " AND start_time < ?"
		args = append(args, *opts.To)
	}

	if opts.From != nil {
		query += " AND (end_time > ? OR start_time >= ?)"
		args = append(args, *opts.From, *opts.From)
	}

	query += " ORDER BY start_time ASC, uid ASC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		_, e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
