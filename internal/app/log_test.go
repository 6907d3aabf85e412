package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHavitHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "run-123",
			level:   slog.LevelInfo,
			message: "file cataloged",
			want:    "2024-06-15T14:30:45Z\tINFO\trun-123\tfile cataloged\n",
		},
		{
			name:    "debug level",
			runID:   "run-456",
			level:   slog.LevelDebug,
			message: "hashing",
			want:    "2024-06-15T14:30:45Z\tDEBUG\trun-456\thashing\n",
		},
		{
			name:    "with record attrs",
			runID:   "run-789",
			level:   slog.LevelInfo,
			message: "checked",
			attrs:   []slog.Attr{slog.String("path", "/data/file.txt"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\trun-789\tchecked\tpath=/data/file.txt\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &havitHandler{w: &buf, runID: tt.runID}

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestHavitHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &havitHandler{w: &buf, runID: "run-1"}

	// Add pre-set attrs
	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "vault")}).(*havitHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "upload", 0)
	r.AddAttrs(slog.String("key", "abc"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=vault") {
		t.Errorf("expected pre-set attr component=vault, got: %q", got)
	}
	if !strings.Contains(got, "key=abc") {
		t.Errorf("expected record attr key=abc, got: %q", got)
	}
}

func TestHavitHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	var buf bytes.Buffer
	h := &havitHandler{w: &buf, runID: "run-1", attrs: []slog.Attr{slog.String("a", "1")}}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*havitHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestHavitHandler_Enabled(t *testing.T) {
	h := &havitHandler{}
	// All levels should be enabled
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestHavitHandler_LevelFilter(t *testing.T) {
	tests := []struct {
		verbosity int
		debug     bool
		info      bool
	}{
		{verbosity: 0, debug: false, info: false},
		{verbosity: 1, debug: false, info: true},
		{verbosity: 2, debug: true, info: true},
		{verbosity: 5, debug: true, info: true},
	}

	for _, tt := range tests {
		h := &havitHandler{level: levelFor(tt.verbosity)}
		ctx := context.Background()
		if got := h.Enabled(ctx, slog.LevelDebug); got != tt.debug {
			t.Errorf("verbosity %d: Enabled(DEBUG) = %v, want %v", tt.verbosity, got, tt.debug)
		}
		if got := h.Enabled(ctx, slog.LevelInfo); got != tt.info {
			t.Errorf("verbosity %d: Enabled(INFO) = %v, want %v", tt.verbosity, got, tt.info)
		}
		if !h.Enabled(ctx, slog.LevelWarn) {
			t.Errorf("verbosity %d: warnings disabled", tt.verbosity)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	var stderr bytes.Buffer

	logger, f, err := newLogger(dir, "test-run", 1, &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	if f == nil {
		t.Fatal("newLogger() returned nil file")
	}

	logger.Info("hello", "n", 1)
	logger.Debug("hidden")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if string(data) != stderr.String() {
		t.Errorf("log file and stderr differ:\n%q\n%q", data, stderr.String())
	}
	if !strings.Contains(string(data), "\tINFO\ttest-run\thello\tn=1\n") {
		t.Errorf("log line = %q", data)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("debug message logged at verbosity 1")
	}
}

func TestNewLogger_NoLogDir(t *testing.T) {
	var stderr bytes.Buffer
	logger, f, err := newLogger("", "run", 0, &stderr)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	if f != nil {
		t.Error("newLogger() opened a file without a log dir")
	}
	logger.Warn("careful")
	if !strings.Contains(stderr.String(), "careful") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestMigrateLogger(t *testing.T) {
	var buf bytes.Buffer
	l := &migrateLogger{l: slog.New(&havitHandler{w: &buf, level: levelFor(2)})}

	if !l.Verbose() {
		t.Error("Verbose() = false at debug level")
	}
	l.Printf("Start buffering %d/u %s\n", 1, "create_files")
	if !strings.Contains(buf.String(), "Start buffering 1/u create_files\tcomponent=migrate") {
		t.Errorf("migrate log = %q", buf.String())
	}

	quiet := &migrateLogger{l: slog.New(&havitHandler{w: &buf, level: levelFor(0)})}
	if quiet.Verbose() {
		t.Error("Verbose() = true at warn level")
	}
}
