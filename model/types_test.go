package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConference_Validation(t *testing.T) {
	tests := []struct {
		name       string
		conference Conference
		wantErr    bool
	}{
		{
			name:       "valid conference",
			conference: Conference{ID: "akademy2024", Name: "Akademy 2024"},
			wantErr:    false,
		},
		{
			name:       "missing ID",
			conference: Conference{Name: "Akademy 2024"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conference.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConference_Location(t *testing.T) {
	tests := []struct {
		name   string
		zone   string
		expect string
	}{
		{"unset", "", "UTC"},
		{"unknown zone", "Mars/Olympus_Mons", "UTC"},
		{"known zone", "Europe/Berlin", "Europe/Berlin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Conference{ID: "c1", TimeZoneID: tt.zone}
			assert.Equal(t, tt.expect, c.Location().String())
		})
	}
}

func TestConference_Clone(t *testing.T) {
	orig := Conference{ID: "c1", Days: []string{"2024-05-01", "2024-05-02"}}
	clone := orig.Clone()
	clone.Days[0] = "changed"

	assert.Equal(t, "2024-05-01", orig.Days[0])
}

func TestEvent_Overlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2024, 5, 1, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		a      Event
		b      Event
		expect bool
	}{
		{
			name:   "adjacent intervals",
			a:      Event{Start: at(10, 0), End: at(11, 0)},
			b:      Event{Start: at(11, 0), End: at(12, 0)},
			expect: false,
		},
		{
			name:   "partial overlap",
			a:      Event{Start: at(10, 0), End: at(11, 0)},
			b:      Event{Start: at(10, 30), End: at(11, 30)},
			expect: true,
		},
		{
			name:   "contained",
			a:      Event{Start: at(10, 0), End: at(12, 0)},
			b:      Event{Start: at(10, 30), End: at(11, 0)},
			expect: true,
		},
		{
			name:   "identical zero length intervals",
			a:      Event{Start: at(10, 30), End: at(10, 30)},
			b:      Event{Start: at(10, 30), End: at(10, 30)},
			expect: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.a.Overlaps(&tt.b))
			assert.Equal(t, tt.expect, tt.b.Overlaps(&tt.a))
		})
	}
}

func TestEvent_HasTimeRange(t *testing.T) {
	now := time.Now()

	assert.True(t, (&Event{Start: now, End: now.Add(time.Hour)}).HasTimeRange())
	assert.False(t, (&Event{Start: now}).HasTimeRange())
	assert.False(t, (&Event{End: now}).HasTimeRange())
	assert.False(t, (&Event{}).HasTimeRange())
}

func TestEvent_Duration(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, 45*time.Minute, (&Event{Start: start, End: start.Add(45 * time.Minute)}).Duration())
	assert.Zero(t, (&Event{Start: start}).Duration())
}
