package store

import (
	"sort"
	"sync"
	"time"

	"github.com/robertmeta/kongress-cli/model"
)

// Calendar is the in-memory working copy of one conference's favorites.
// Changes reach the database through Store.Save.
type Calendar struct {
	id  string
	loc *time.Location

	mu     sync.RWMutex
	events map[string]model.Event
}

func newCalendar(id string, loc *time.Location) *Calendar {
	return &Calendar{
		id:     id,
		loc:    loc,
		events: make(map[string]model.Event),
	}
}

// ID returns the calendar ID, which is the conference ID.
func (c *Calendar) ID() string {
	return c.id
}

// Location returns the calendar time zone.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// EventsOnDate returns the events that start on, or run through, the
// calendar day of date in loc, ordered by start time.
func (c *Calendar) EventsOnDate(date time.Time, loc *time.Location) []model.Event {
	if loc == nil {
		loc = c.loc
	}
	y, m, d := date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	c.mu.RLock()
	defer c.mu.RUnlock()

	var events []model.Event
	for _, e := range c.events {
		if !e.HasTimeRange() {
			continue
		}
		startsToday := !e.Start.Before(dayStart) && e.Start.Before(dayEnd)
		spansToday := e.Start.Before(dayEnd) && e.End.After(dayStart)
		if startsToday || spansToday {
			events = append(events, e)
		}
	}
	sortEvents(events)
	return events
}

// EventByUID returns the event with the given UID.
func (c *Calendar) EventByUID(uid string) (model.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.events[uid]
	return e, ok
}

// Upsert adds the event or replaces the one with the same UID.
func (c *Calendar) Upsert(e model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events[e.UID] = e
}

// Delete removes the event with the given UID and reports whether it existed.
func (c *Calendar) Delete(uid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.events[uid]
	delete(c.events, uid)
	return ok
}

// Events returns all events ordered by start time. Undated events come first.
func (c *Calendar) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := make([]model.Event, 0, len(c.events))
	for _, e := range c.events {
		events = append(events, e)
	}
	sortEvents(events)
	return events
}

// Len returns the number of events.
func (c *Calendar) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.events)
}

func sortEvents(events []model.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].UID < events[j].UID
	})
}
