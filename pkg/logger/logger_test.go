package logger_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/pkg/logger"
)

func TestLog(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	templogger, err := logger.NewBuild().FromBuffer(buff).Make()
	require.NoError(t, err)
	require.NotNil(t, templogger)
	require.Equal(t, 0, buff.Len())
	templogger.Logger.Info().Msg("Test")
	require.Contains(t, buff.String(), "Test")
}

func TestZerologAdapter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	data, err := logger.NewBuild().FromBuffer(buff).Level("debug").Make()
	require.NoError(t, err)

	log := logger.FromZerolog(data.Logger)
	log.Warn("badge award failed", "user", "rec1", "error", errors.New("boom"), "dangling")

	out := buff.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"user":"rec1"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"!BADKEY":"dangling"`)
	assert.Contains(t, out, `"message":"badge award failed"`)
}

func TestZerologLevelFilter(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	data, err := logger.NewBuild().FromBuffer(buff).Level("warn").Make()
	require.NoError(t, err)

	log := logger.FromZerolog(data.Logger)
	log.Info("hidden")
	log.Debug("hidden")
	assert.Equal(t, 0, buff.Len())
	log.Error("shown")
	assert.Contains(t, buff.String(), "shown")
}

func TestSlogBackend(t *testing.T) {
	buff := bytes.NewBuffer([]byte{})
	log := logger.New(slog.NewJSONHandler(buff, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Debug("hydrated", "question", "rec9")
	assert.Contains(t, buff.String(), `"level":"DEBUG"`)
	assert.Contains(t, buff.String(), `"question":"rec9"`)
}
