package log

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetupWriter(t *testing.T) {
	defer SetupWriter(&bytes.Buffer{}, "info")

	tests := []struct {
		level  string
		expect logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"chatty", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupWriter(&bytes.Buffer{}, tt.level)
			assert.Equal(t, tt.expect, logger.GetLevel())
		})
	}
}

func TestSetupWriter_Output(t *testing.T) {
	var buf bytes.Buffer
	defer SetupWriter(&bytes.Buffer{}, "info")

	logger := SetupWriter(&buf, "info")
	logger.WithField(FldConference, "c1").Info("selected")

	assert.Contains(t, buf.String(), "conference=c1")
	assert.Contains(t, buf.String(), "selected")
}
