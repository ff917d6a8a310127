package store

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertmeta/kongress-cli/favorites"
	"github.com/robertmeta/kongress-cli/model"
)

var _ favorites.Calendar = (*Calendar)(nil)
var _ favorites.Saver = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	s.SetLogger(quiet)
	return s
}

func at(day, h, m int) time.Time {
	return time.Date(2024, 5, day, h, m, 0, 0, time.UTC)
}

func TestNewStore(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
}

func TestNewStore_ReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kongress.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Settings().Set("general.defaultConferenceId", "c1"))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err, "migrations are idempotent")
	defer s.Close()

	value, err := s.Settings().Get("general.defaultConferenceId")
	require.NoError(t, err)
	assert.Equal(t, "c1", value)
}

func TestStore_OpenCalendar(t *testing.T) {
	s := newTestStore(t)

	_, err := s.OpenCalendar("", time.UTC)
	assert.Error(t, err)

	cal, err := s.OpenCalendar("c1", nil)
	require.NoError(t, err)
	assert.Equal(t, "c1", cal.ID())
	assert.Equal(t, time.UTC, cal.Location())
	assert.Zero(t, cal.Len())

	again, err := s.OpenCalendar("c1", nil)
	require.NoError(t, err)
	assert.Same(t, cal, again)
}

func TestStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kongress.db")
	s, err := New(path)
	require.NoError(t, err)

	cal, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)

	cal.Upsert(model.Event{
		UID:         "talk-1",
		Start:       at(1, 10, 0),
		End:         at(1, 11, 0),
		Summary:     "Talk A",
		Description: "About A",
		Categories:  "Keynote",
		Location:    "Main hall",
		URL:         "https://example.org/a",
	})
	cal.Upsert(model.Event{UID: "talk-2", Summary: "Undated", AllDay: true})

	assert.True(t, s.Save("c1"))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()

	cal, err = s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)
	require.Equal(t, 2, cal.Len())

	got, ok := cal.EventByUID("talk-1")
	require.True(t, ok)
	assert.Equal(t, "Talk A", got.Summary)
	assert.Equal(t, "About A", got.Description)
	assert.Equal(t, "Keynote", got.Categories)
	assert.Equal(t, "Main hall", got.Location)
	assert.Equal(t, "https://example.org/a", got.URL)
	assert.True(t, got.Start.Equal(at(1, 10, 0)))
	assert.True(t, got.End.Equal(at(1, 11, 0)))

	undated, ok := cal.EventByUID("talk-2")
	require.True(t, ok)
	assert.True(t, undated.Start.IsZero())
	assert.True(t, undated.AllDay)
}

func TestStore_SaveReplacesRows(t *testing.T) {
	s := newTestStore(t)

	cal, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)
	cal.Upsert(model.Event{UID: "a", Summary: "A", Start: at(1, 10, 0), End: at(1, 11, 0)})
	cal.Upsert(model.Event{UID: "b", Summary: "B", Start: at(1, 12, 0), End: at(1, 13, 0)})
	require.True(t, s.Save("c1"))

	cal.Delete("a")
	require.True(t, s.Save("c1"))

	_, err = s.GetEvent("c1", "a")
	assert.True(t, errors.Is(err, ErrNotFound))

	b, err := s.GetEvent("c1", "b")
	require.NoError(t, err)
	assert.Equal(t, "B", b.Summary)
}

func TestStore_CalendarsAreSeparate(t *testing.T) {
	s := newTestStore(t)

	c1, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)
	c2, err := s.OpenCalendar("c2", time.UTC)
	require.NoError(t, err)

	c1.Upsert(model.Event{UID: "same", Summary: "In c1", Start: at(1, 10, 0), End: at(1, 11, 0)})
	c2.Upsert(model.Event{UID: "same", Summary: "In c2", Start: at(1, 10, 0), End: at(1, 11, 0)})
	require.True(t, s.Save("c1"))
	require.True(t, s.Save("c2"))

	e1, err := s.GetEvent("c1", "same")
	require.NoError(t, err)
	e2, err := s.GetEvent("c2", "same")
	require.NoError(t, err)
	assert.Equal(t, "In c1", e1.Summary)
	assert.Equal(t, "In c2", e2.Summary)
}

func TestStore_SaveUnknownCalendar(t *testing.T) {
	s := newTestStore(t)
	assert.False(t, s.Save("never-opened"))
}

func TestStore_SaveAfterClose(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.False(t, s.Save("c1"))
}

func TestStore_ListEvents(t *testing.T) {
	s := newTestStore(t)

	cal, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)
	cal.Upsert(model.Event{UID: "a", Summary: "Day one morning", Start: at(1, 10, 0), End: at(1, 11, 0)})
	cal.Upsert(model.Event{UID: "b", Summary: "Day one late", Start: at(1, 23, 30), End: at(2, 0, 30)})
	cal.Upsert(model.Event{UID: "c", Summary: "Day two", Start: at(2, 9, 0), End: at(2, 10, 0)})
	cal.Upsert(model.Event{UID: "d", Summary: "Undated"})
	require.True(t, s.Save("c1"))

	other, err := s.OpenCalendar("c2", time.UTC)
	require.NoError(t, err)
	other.Upsert(model.Event{UID: "x", Summary: "Other conference", Start: at(2, 9, 0), End: at(2, 10, 0)})
	require.True(t, s.Save("c2"))

	summaries := func(events []model.Event) []string {
		out := []string{}
		for _, e := range events {
			out = append(out, e.Summary)
		}
		return out
	}

	t.Run("whole calendar", func(t *testing.T) {
		events, err := s.ListEvents(QueryOptions{CalendarID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Undated", "Day one morning", "Day one late", "Day two"}, summaries(events))
	})

	t.Run("one day", func(t *testing.T) {
		opts, err := BuildQueryOptions("c1", "2024-05-02", "", time.UTC, 0, 0, time.Now())
		require.NoError(t, err)

		events, err := s.ListEvents(opts)
		require.NoError(t, err)
		assert.Equal(t, []string{"Day one late", "Day two"}, summaries(events))
	})

	t.Run("limit and offset", func(t *testing.T) {
		events, err := s.ListEvents(QueryOptions{CalendarID: "c1", Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"Day one morning", "Day one late"}, summaries(events))

		events, err = s.ListEvents(QueryOptions{CalendarID: "c1", Offset: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"Day two"}, summaries(events))
	})

	t.Run("all calendars", func(t *testing.T) {
		events, err := s.ListEvents(QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, events, 5)
	})
}

func TestStore_WithFavoritesEngine(t *testing.T) {
	s := newTestStore(t)
	cal, err := s.OpenCalendar("c1", time.UTC)
	require.NoError(t, err)

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	engine := favorites.NewEngine(s, nil, favorites.WithLogger(quiet))

	res := engine.AddEdit(cal, model.Event{Summary: "Talk A", Start: at(1, 10, 0), End: at(1, 11, 0)})
	require.Equal(t, favorites.StatusAddedClean, res.Status)

	res = engine.AddEdit(cal, model.Event{Summary: "Talk B", Start: at(1, 10, 30), End: at(1, 11, 30)})
	require.Equal(t, favorites.StatusAddedOverlapping, res.Status)
	assert.Equal(t, []string{"Talk A"}, res.Overlapping)

	stored, err := s.ListEvents(QueryOptions{CalendarID: "c1"})
	require.NoError(t, err)
	assert.Len(t, stored, 2, "both favorites reached the database")

	engine.Remove(cal, res.UID)
	stored, err = s.ListEvents(QueryOptions{CalendarID: "c1"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Talk A", stored[0].Summary)
}
