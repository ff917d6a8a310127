// Package model defines the core data structures for kongress-cli.
package model

import (
	"errors"
	"time"
)

// Conference describes one conference of the catalog.
// Empty strings mean the value is unset.
type Conference struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ICalURL        string   `json:"icalUrl"`
	Days           []string `json:"days"`
	VenueImageURL  string   `json:"venueImageUrl"`
	VenueLatitude  string   `json:"venueLatitude"`
	VenueLongitude string   `json:"venueLongitude"`
	VenueOsmURL    string   `json:"venueOsmUrl"`
	TimeZoneID     string   `json:"timeZoneId"`
}

// Validate checks if the conference has required fields.
func (c *Conference) Validate() error {
	if c.ID == "" {
		return errors.New("conference ID is required")
	}
	return nil
}

// Location resolves the conference time zone, falling back to UTC when the
// zone is unset or unknown.
func (c *Conference) Location() *time.Location {
	if c.TimeZoneID == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Clone returns a deep copy of the conference.
func (c Conference) Clone() Conference {
	if c.Days != nil {
		c.Days = append([]string(nil), c.Days...)
	}
	return c
}

// Event is a favorited occurrence of a talk.
// A zero Start or End means the value is missing or could not be parsed.
type Event struct {
	UID         string    `json:"uid"`
	Start       time.Time `json:"start_date"`
	End         time.Time `json:"end_date"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Categories  string    `json:"categories,omitempty"`
	Location    string    `json:"location,omitempty"`
	URL         string    `json:"url,omitempty"`
	AllDay      bool      `json:"all_day"`
}

// HasTimeRange reports whether both start and end are set.
func (e *Event) HasTimeRange() bool {
	return !e.Start.IsZero() && !e.End.IsZero()
}

// Overlaps reports whether e and other intersect as half-open intervals.
// Touching intervals and zero-length intervals never overlap.
func (e *Event) Overlaps(other *Event) bool {
	return e.Start.Before(other.End) && e.End.After(other.Start)
}

// Duration returns the length of the event, or zero without a time range.
func (e *Event) Duration() time.Duration {
	if !e.HasTimeRange() {
		return 0
	}
	return e.End.Sub(e.Start)
}
