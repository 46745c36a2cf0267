package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_AddsCallerFields(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevLevel := logger.Out, logger.GetLevel()
	t.Cleanup(func() {
		logger.Out = prevOut
		logger.SetLevel(prevLevel)
		Configure("json", "info")
	})
	logger.Out = &buf
	Configure("json", "debug")

	GetLogger().WithField("stage_id", "s-1").Debug("participant processed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "participant processed", entry["msg"])
	assert.Equal(t, "s-1", entry["stage_id"])
	assert.Contains(t, entry["function"], "TestGetLogger_AddsCallerFields")
	assert.NotEmpty(t, entry["file"])
}

func TestConfigure_TextAndUnknownLevel(t *testing.T) {
	t.Cleanup(func() { Configure("json", "info") })

	Configure("text", "warn")
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	Configure("json", "verbose")
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())
}
