package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		logFunc func(*log.Logger)
		wantLog bool
	}{
		{"info at info level", LogInfo, func(l *log.Logger) { l.Info("layout") }, true},
		{"debug at info level", LogInfo, func(l *log.Logger) { l.Debug("frame") }, false},
		{"debug at debug level", LogDebug, func(l *log.Logger) { l.Debug("frame") }, true},
		{"warn at error level", LogError, func(l *log.Logger) { l.Warn("mesh missing") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.logFunc(newLogger(&buf, tt.level))
			if got := buf.Len() > 0; got != tt.wantLog {
				t.Errorf("got log output = %v, want %v", got, tt.wantLog)
			}
		})
	}
}

func TestProgressStages(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, LogDebug))

	prog.stage("load", "trees", 3)
	prog.stage("render", "frames", 49)
	prog.done("Wrote 49 frames")

	out := buf.String()
	for _, want := range []string{"stage=load", "trees=3", "stage=render", "frames=49", "Wrote 49 frames ("} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProgressStagesHiddenAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prog := newProgress(newLogger(&buf, LogInfo))
	prog.stage("load")
	if buf.Len() != 0 {
		t.Errorf("stage timing leaked at info level: %q", buf.String())
	}
	prog.done("Rendered run.nwk")
	if !strings.Contains(buf.String(), "Rendered run.nwk") {
		t.Errorf("done not logged: %q", buf.String())
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("without a logger the default should be returned")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, LogInfo)
	got := loggerFromContext(withLogger(context.Background(), custom))
	if got != custom {
		t.Fatal("loggerFromContext should return the attached logger")
	}
	got.Info("watching")
	if buf.Len() == 0 {
		t.Error("attached logger should write to its buffer")
	}
}
