package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fxarb/internal/config"
	"github.com/rs/zerolog"
)

func TestNewLoggerWritesFile(t *testing.T) {
	cfg := config.Load()
	cfg.Logging.Level = "debug"
	cfg.Logging.File = filepath.Join(t.TempDir(), "fxarb.log")
	l := Component(NewLogger(cfg), "test")
	l.Info().Str("pair", "USD/EUR").Msg("hello")

	b, err := os.ReadFile(cfg.Logging.File)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"component":"test"`) || !strings.Contains(s, `"pair":"USD/EUR"`) {
		t.Fatalf("unexpected log line %q", s)
	}
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("level not applied")
	}
}

func TestBadLevelFallsBackToInfo(t *testing.T) {
	cfg := config.Load()
	cfg.Logging.Level = "loud"
	_ = NewLogger(cfg)
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("expected info level, got %s", zerolog.GlobalLevel())
	}
}
