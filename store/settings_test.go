package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings_GetUnset(t *testing.T) {
	s := newTestStore(t)

	value, err := s.Settings().Get("general.loadPredefined")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestSettings_SetAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()

	require.NoError(t, settings.Set("general.loadPredefined", "yes"))
	require.NoError(t, settings.Set("general.defaultConferenceId", "akademy2024"))
	require.NoError(t, settings.Set("general.defaultConferenceId", "fosdem2025"))

	value, err := settings.Get("general.defaultConferenceId")
	require.NoError(t, err)
	assert.Equal(t, "fosdem2025", value)

	all, err := settings.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"general.loadPredefined":      "yes",
		"general.defaultConferenceId": "fosdem2025",
	}, all)
}

func TestSettings_ClosedDatabase(t *testing.T) {
	s := newTestStore(t)
	settings := s.Settings()
	require.NoError(t, s.Close())

	_, err := settings.Get("general.loadPredefined")
	assert.Error(t, err)
	assert.Error(t, settings.Set("general.loadPredefined", "yes"))
}
