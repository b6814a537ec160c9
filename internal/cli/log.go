package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/event"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, rounded to the millisecond.
// Example output: "Exported 3 sources (1.234s)"
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", p.elapsed())...)
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// logEvents mirrors registry events to the debug log and returns the
// unsubscribe function.
func logEvents(l *log.Logger, bus *event.Bus) func() {
	return bus.Subscribe(func(e event.Event) {
		var kv []any
		if e.Layer != "" {
			kv = append(kv, "layer", e.Layer)
		}
		if e.Previous != "" {
			kv = append(kv, "was", e.Previous)
		}
		if e.Node != "" {
			kv = append(kv, "node", e.Node)
		}
		if e.Tag != "" {
			kv = append(kv, "tag", e.Tag)
		}
		if e.Duration > 0 {
			kv = append(kv, "took", e.Duration.Round(time.Microsecond))
		}
		if e.Error != "" {
			kv = append(kv, "err", e.Error)
		}
		l.Debug(e.Kind.String(), kv...)
	})
}
