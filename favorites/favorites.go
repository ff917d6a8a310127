// Package favorites adds and removes favorite talks in a conference calendar.
//
// The Engine never owns storage. It reads and writes the events of a
// Calendar, asks a Saver to persist the calendar and tells a Notifier that
// the calendar's events may have changed.
package favorites

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/robertmeta/kongress-cli/log"
	"github.com/robertmeta/kongress-cli/model"
)

const (
	msgCreateFailed = "Error during event creation"
	msgAlready      = "Already in favorites"
	msgAdded        = "Talk added to favorites"
	msgOverlaps     = "Talk added to favorites, but it overlaps with existing ones:\n"
)

// EventStore holds the events of one calendar, keyed by UID.
type EventStore interface {
	// EventsOnDate returns the events occurring on the calendar day of date,
	// with the day boundaries taken in loc.
	EventsOnDate(date time.Time, loc *time.Location) []model.Event
	EventByUID(uid string) (model.Event, bool)
	// Upsert adds the event or replaces the one with the same UID.
	Upsert(e model.Event)
	Delete(uid string) bool
}

// Calendar is a favorites calendar: an identity, a time zone and its events.
type Calendar interface {
	EventStore
	ID() string
	Location() *time.Location
}

// Saver persists a calendar and reports whether it succeeded.
type Saver interface {
	Save(calendarID string) bool
}

// Notifier is told when the events of a calendar may have changed.
type Notifier interface {
	EventsChanged(calendarID string)
}

// NopNotifier ignores all signals.
type NopNotifier struct{}

func (NopNotifier) EventsChanged(string) {}

// Check is the outcome of comparing a candidate with a calendar.
type Check int

const (
	Exists Check = iota
	NotExistsButOverlaps
	NotExistsNotOverlapping
)

func (c Check) String() string {
	switch c {
	case Exists:
		return "exists"
	case NotExistsButOverlaps:
		return "not_exists_but_overlaps"
	case NotExistsNotOverlapping:
		return "not_exists_not_overlapping"
	default:
		return "unknown"
	}
}

// MarshalText renders the check as its name.
func (c Check) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Status is the outcome of AddEdit.
type Status int

const (
	StatusAddedClean Status = iota
	StatusAddedOverlapping
	StatusAlreadyFavorited
	StatusNoCalendar
)

func (s Status) String() string {
	switch s {
	case StatusAddedClean:
		return "added"
	case StatusAddedOverlapping:
		return "added_overlapping"
	case StatusAlreadyFavorited:
		return "already_favorited"
	case StatusNoCalendar:
		return "no_calendar"
	default:
		return "unknown"
	}
}

// MarshalText renders the status as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of AddEdit.
type Result struct {
	Status      Status   `json:"status"`
	Message     string   `json:"message"`
	UID         string   `json:"uid,omitempty"`
	Overlapping []string `json:"overlapping,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithUIDGenerator replaces the generator of UIDs for new events.
func WithUIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		e.newUID = gen
	}
}

// Engine adds, edits and removes favorites.
type Engine struct {
	saver    Saver
	notifier Notifier
	log      logrus.FieldLogger
	newUID   func() string
}

// NewEngine creates an Engine. saver and notifier may be nil.
func NewEngine(saver Saver, notifier Notifier, opts ...Option) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	e := &Engine{
		saver:    saver,
		notifier: notifier,
		log:      logrus.StandardLogger(),
		newUID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckEvent reports whether candidate is already in cal or overlaps the
// events on its start day. A UID match wins over any overlap found so far.
// A candidate without a start or end never matches and never overlaps.
func (e *Engine) CheckEvent(cal Calendar, candidate model.Event) (Check, []string) {
	if !candidate.HasTimeRange() {
		return NotExistsNotOverlapping, nil
	}

	var overlapping []string
	for _, existing := range cal.EventsOnDate(candidate.Start, cal.Location()) {
		if candidate.Overlaps(&existing) {
			overlapping = append(overlapping, existing.Summary)
		}
		if candidate.UID != "" && existing.UID == candidate.UID {
			return Exists, nil
		}
	}

	if len(overlapping) > 0 {
		return NotExistsButOverlaps, overlapping
	}
	return NotExistsNotOverlapping, nil
}

// AddEdit stores candidate in cal, creating it or updating the event with
// the same UID. A candidate already present on its start day is left alone.
func (e *Engine) AddEdit(cal Calendar, candidate model.Event) Result {
	if cal == nil {
		e.log.Warn("There is no calendar to add the event to")
		return Result{Status: StatusNoCalendar, Message: msgCreateFailed}
	}

	check, overlapping := e.CheckEvent(cal, candidate)
	if check == Exists {
		return Result{Status: StatusAlreadyFavorited, Message: msgAlready, UID: candidate.UID}
	}

	logger := e.log.WithField(log.FldCalendar, cal.ID())

	var (
		event model.Event
		found bool
	)
	if candidate.UID != "" {
		event, found = cal.EventByUID(candidate.UID)
	}
	if !found {
		event = model.Event{UID: candidate.UID}
		if event.UID == "" {
			event.UID = e.newUID()
		}
	}

	event.Start = toUTC(candidate.Start)
	event.End = toUTC(candidate.End)
	event.Description = candidate.Description
	event.Categories = candidate.Categories
	event.Summary = candidate.Summary
	event.AllDay = candidate.AllDay
	event.Location = candidate.Location
	event.URL = candidate.URL

	cal.Upsert(event)
	logger.WithField(log.FldUID, event.UID).WithField("update", found).Debug("Event stored")

	e.persist(cal)

	if check == NotExistsButOverlaps {
		return Result{
			Status:      StatusAddedOverlapping,
			Message:     msgOverlaps + strings.Join(overlapping, "\n"),
			UID:         event.UID,
			Overlapping: overlapping,
		}
	}
	return Result{Status: StatusAddedClean, Message: msgAdded, UID: event.UID}
}

// Remove deletes the event with the given UID from cal. The calendar is
// saved even when no such event exists.
func (e *Engine) Remove(cal Calendar, uid string) {
	if cal == nil {
		e.log.Warn("There is no calendar to delete the event from")
		return
	}

	deleted := cal.Delete(uid)
	e.log.WithField(log.FldCalendar, cal.ID()).
		WithField(log.FldUID, uid).
		WithField("found", deleted).
		Debug("Deleting event")

	e.persist(cal)
}

func (e *Engine) persist(cal Calendar) {
	saved := false
	if e.saver != nil {
		saved = e.saver.Save(cal.ID())
	}
	e.notifier.EventsChanged(cal.ID())

	logger := e.log.WithField(log.FldCalendar, cal.ID()).WithField(log.FldSaved, saved)
	if !saved {
		logger.Warn("Calendar changes were not saved")
		return
	}
	logger.Debug("Calendar saved")
}

func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
