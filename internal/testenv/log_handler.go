package testenv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogHandler is a slog.Handler that prints message index (starting from 0),
// level and message content, without the timestamp, so that log output in
// tests is deterministic. It is safe for concurrent use.
type LogHandler struct {
	state       *logState
	attrs       []slog.Attr
	groups      []string
	ignoreDebug bool
}

type logState struct {
	mu    sync.Mutex
	w     io.Writer
	index int
}

// LogHandlerOption is a function that configures a LogHandler
type LogHandlerOption func(*LogHandler)

// WithIgnoreDebug configures the handler to ignore DEBUG level messages
func WithIgnoreDebug() LogHandlerOption {
	return func(h *LogHandler) {
		h.ignoreDebug = true
	}
}

// WithWriter sends output to w instead of stdout.
func WithWriter(w io.Writer) LogHandlerOption {
	return func(h *LogHandler) {
		h.state.w = w
	}
}

func NewLogHandler(opts ...LogHandlerOption) *LogHandler {
	h := &LogHandler{state: &logState{w: os.Stdout}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

//nolint:gocritic
func (h *LogHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug && h.ignoreDebug {
		return nil
	}
	attrs := h.attrsToString(&r)

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if attrs != "" {
		fmt.Fprintf(h.state.w, "[%d] %s: %s %s\n", h.state.index, r.Level, r.Message, attrs)
	} else {
		fmt.Fprintf(h.state.w, "[%d] %s: %s\n", h.state.index, r.Level, r.Message)
	}
	h.state.index++
	return nil
}

func (h *LogHandler) attrsToString(r *slog.Record) string {
	var parts []string
	for _, attr := range h.attrs {
		parts = append(parts, formatAttr(attr, ""))
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, formatAttr(a, prefix))
		return true
	})
	return strings.Join(parts, ", ")
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		var parts []string
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, prefix+a.Key+"."))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}

func (h *LogHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	for _, attr := range attrs {
		attr.Key = prefix + attr.Key
		next = append(next, attr)
	}
	return &LogHandler{state: h.state, attrs: next, groups: h.groups, ignoreDebug: h.ignoreDebug}
}

func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &LogHandler{
		state:       h.state,
		attrs:       h.attrs,
		groups:      append(h.groups[:len(h.groups):len(h.groups)], name),
		ignoreDebug: h.ignoreDebug,
	}
}
