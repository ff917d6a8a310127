// Package ics reads conference schedules and writes favorites calendars in
// iCalendar format.
package ics

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/sirupsen/logrus"

	"github.com/robertmeta/kongress-cli/log"
	"github.com/robertmeta/kongress-cli/model"
)

const productID = "-//kongress-cli//Favorites//EN"

// Parse reads the talks of a conference schedule.
//
// Events without a UID are skipped. Unreadable DTSTART/DTEND values leave the
// talk's Start/End zero instead of failing the whole schedule.
func Parse(r io.Reader) ([]model.Event, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}

	talks := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		talk, err := parseVEvent(ve)
		if err != nil {
			logrus.WithError(err).Warn("Skipping schedule entry")
			continue
		}
		talks = append(talks, talk)
	}

	logrus.WithField(log.FldCount, len(talks)).Debug("Schedule parsed")
	return talks, nil
}

func parseVEvent(ve *ical.VEvent) (model.Event, error) {
	var out model.Event

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	out.Summary = propertyValue(ve, ical.ComponentPropertySummary)
	out.Description = propertyValue(ve, ical.ComponentPropertyDescription)
	out.Location = propertyValue(ve, ical.ComponentPropertyLocation)
	out.URL = propertyValue(ve, ical.ComponentPropertyUrl)

	var categories []string
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		if p.Value != "" {
			categories = append(categories, p.Value)
		}
	}
	out.Categories = strings.Join(categories, ",")

	out.AllDay = isAllDay(ve.GetProperty(ical.ComponentPropertyDtStart))

	var start, end time.Time
	var startErr, endErr error
	if out.AllDay {
		start, startErr = ve.GetAllDayStartAt()
		end, endErr = ve.GetAllDayEndAt()
	} else {
		start, startErr = ve.GetStartAt()
		end, endErr = ve.GetEndAt()
	}
	if startErr == nil {
		out.Start = start
	}
	if endErr == nil {
		out.End = end
	}

	return out, nil
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

// isAllDay reports whether DTSTART is a date without a time.
func isAllDay(p *ical.IANAProperty) bool {
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// Find returns the talk with the given UID.
func Find(talks []model.Event, uid string) (model.Event, bool) {
	for _, t := range talks {
		if t.UID == uid {
			return t, true
		}
	}
	return model.Event{}, false
}

// ExportOptions controls Generate.
type ExportOptions struct {
	// Name is the calendar display name (X-WR-CALNAME).
	Name string
	// TimeZone is the calendar time zone ID (X-WR-TIMEZONE).
	TimeZone string
	// Now stamps every event (DTSTAMP). Zero means the current time.
	Now time.Time
}

// Generate writes events as an iCalendar document.
func Generate(w io.Writer, events []model.Event, opts ExportOptions) error {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.TimeZone != "" {
		cal.SetXWRTimezone(opts.TimeZone)
	}

	for _, e := range events {
		ve := cal.AddEvent(e.UID)
		ve.SetDtStampTime(now.UTC())

		if !e.Start.IsZero() {
			if e.AllDay {
				ve.SetAllDayStartAt(e.Start)
			} else {
				ve.SetStartAt(e.Start.UTC())
			}
		}
		if !e.End.IsZero() {
			if e.AllDay {
				ve.SetAllDayEndAt(e.End)
			} else {
				ve.SetEndAt(e.End.UTC())
			}
		}

		ve.SetSummary(e.Summary)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		if e.URL != "" {
			ve.SetURL(e.URL)
		}
		if e.Categories != "" {
			ve.SetProperty(ical.ComponentPropertyCategories, e.Categories)
		}
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("failed to write calendar: %w", err)
	}
	return nil
}
