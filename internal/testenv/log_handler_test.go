package testenv

import (
	"bytes"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ExampleNewLogHandler() {
	log := slog.New(NewLogHandler(WithWriter(os.Stdout)))

	log.Info("feed loaded")
	log.Warn("author lookup failed", slog.String("author", "recA"))
	log.Error("vote failed", slog.Int("attempts", 4))

	// Output:
	// [0] INFO: feed loaded
	// [1] WARN: author lookup failed author=recA
	// [2] ERROR: vote failed attempts=4
}

func TestLogHandlerGroupsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewLogHandler(WithWriter(&buf), WithIgnoreDebug()))

	log.Debug("hidden")
	log.With("user", "recA").WithGroup("badge").Info("awarded", "name", "First Question")

	assert.Equal(t, "[0] INFO: awarded user=recA, badge.name=First Question\n", buf.String())
}
