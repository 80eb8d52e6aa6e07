// Package audit keeps a trail of routing decisions in rotating JSON lines files.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/liamcoop/surveylogic/rules"
)

// Entry is one routing decision
type Entry struct {
	TenantID   string
	SurveyID   string
	QuestionID string
	Decision   rules.Decision
}

// Recorder stores routing decisions
type Recorder interface {
	Record(e Entry)
	Close() error
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) Record(Entry) {}
func (NopRecorder) Close() error { return nil }

// lineHandler writes each record as a flat JSON object on its own line,
// with the time and attributes at the top level and no level or message.
type lineHandler struct {
	out io.Writer
	mu  *sync.Mutex
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+1)
	attrs["time"] = r.Time.UTC().Format(time.RFC3339Nano)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "" {
			attrs[a.Key] = a.Value.Resolve().Any()
		}
		return true
	})

	data, err := json.Marshal(attrs)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(data, '\n'))
	return err
}

// WithAttrs and WithGroup are not needed by the recorder
func (h *lineHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *lineHandler) WithGroup(string) slog.Handler      { return h }

// JSONLRecorder appends decisions to a file rotated and compressed by lumberjack
type JSONLRecorder struct {
	out    io.WriteCloser
	logger *slog.Logger
}

// NewJSONLRecorder writes to file, rotating after maxSize megabytes and
// keeping maxBackups old files
func NewJSONLRecorder(file string, maxSize, maxBackups int) *JSONLRecorder {
	return NewWriterRecorder(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	})
}

// NewWriterRecorder writes JSON lines to any writer
func NewWriterRecorder(out io.WriteCloser) *JSONLRecorder {
	return &JSONLRecorder{
		out:    out,
		logger: slog.New(&lineHandler{out: out, mu: &sync.Mutex{}}),
	}
}

// Record is safe for concurrent use
func (r *JSONLRecorder) Record(e Entry) {
	args := []any{
		"tenant", e.TenantID,
		"survey", e.SurveyID,
		"question", e.QuestionID,
		"reason", string(e.Decision.Reason),
		"end", e.Decision.End,
	}
	if e.Decision.NextQuestionID != "" {
		args = append(args, "next", e.Decision.NextQuestionID)
	}
	if e.Decision.RuleID != "" {
		args = append(args, "rule", e.Decision.RuleID)
	}
	r.logger.Info("", args...)
}

// Close closes the underlying file
func (r *JSONLRecorder) Close() error {
	return r.out.Close()
}
