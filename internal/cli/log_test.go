package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stratum/pkg/event"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{
			name:    "info at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Info("test") },
			wantLog: true,
		},
		{
			name:    "debug at info level",
			level:   log.InfoLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: false,
		},
		{
			name:    "debug at debug level",
			level:   log.DebugLevel,
			logFunc: func(l *log.Logger) { l.Debug("test") },
			wantLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			tt.logFunc(logger)

			gotLog := buf.Len() > 0
			if gotLog != tt.wantLog {
				t.Errorf("got log output = %v, want %v", gotLog, tt.wantLog)
			}
		})
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	prog := newProgress(logger)
	time.Sleep(10 * time.Millisecond)
	prog.done("exported", "layers", 2)

	out := buf.String()
	for _, want := range []string{"exported", "layers=2", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("progress.done() output %q missing %q", out, want)
		}
	}
	if prog.elapsed() < 10*time.Millisecond {
		t.Errorf("elapsed() = %v, want >= 10ms", prog.elapsed())
	}
}

func TestLogEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.DebugLevel)
	bus := event.NewBus()

	cancel := logEvents(logger, bus)
	bus.Post(event.Event{Kind: event.LayerRenamed, Layer: "hills", Previous: "layer_2"})
	out := buf.String()
	for _, want := range []string{"layer=hills", "was=layer_2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	cancel()
	buf.Reset()
	bus.Post(event.Event{Kind: event.LayerAdded, Layer: "x"})
	if buf.Len() != 0 {
		t.Errorf("logged after cancel: %q", buf.String())
	}
}

func TestLogEventsQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	bus := event.NewBus()
	logEvents(newLogger(&buf, log.InfoLevel), bus)
	bus.Post(event.Event{Kind: event.ComputeFinished, Layer: "a", Node: "n"})
	if buf.Len() != 0 {
		t.Errorf("debug events leaked at info level: %q", buf.String())
	}
}
