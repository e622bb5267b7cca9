package backtest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fxarb/internal/arbitrage"
	"fxarb/internal/config"
	"fxarb/internal/graph"
	"fxarb/internal/infra/log"
	"fxarb/internal/wire"
)

func capture(t0 time.Time, quotes ...wire.Quote) []byte {
	var b []byte
	for _, q := range quotes {
		if q.Timestamp == 0 {
			q.Timestamp = uint64(t0.UnixMicro())
		}
		f := wire.EncodeFrame(q)
		b = append(b, f[:]...)
	}
	return b
}

func newEngine(t *testing.T) *arbitrage.Engine {
	t.Helper()
	eng, err := arbitrage.New(config.Default(), log.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return eng
}

func qt(c1, c2 graph.Currency, rate float64) wire.Quote {
	return wire.Quote{Currency1: c1, Currency2: c2, Rate: rate}
}

func TestReplayFindsArbitrage(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data := capture(t0,
		qt("USD", "EUR", 0.9),
		qt("EUR", "GBP", 0.8),
		qt("GBP", "USD", 1.5),
	)
	st, err := Replay(context.Background(), bytes.NewReader(data), newEngine(t), 3)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if st.Batches != 1 || st.Accepted != 3 || st.Reports != 1 {
		t.Fatalf("unexpected stats %s", st)
	}
}

func TestReplayTrailingPartialFrame(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data := capture(t0, qt("USD", "EUR", 0.9), qt("EUR", "GBP", 0.8))
	data = append(data, 1, 2, 3)

	st, err := Replay(context.Background(), bytes.NewReader(data), newEngine(t), 2)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if st.Batches != 2 || st.Accepted != 2 || st.DecodeErrors != 1 {
		t.Fatalf("unexpected stats %s", st)
	}
}

func TestReplayUsesRecordedClock(t *testing.T) {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	late := uint64(t0.Add(2 * time.Second).UnixMicro())
	data := capture(t0,
		qt("USD", "EUR", 0.9),
		qt("EUR", "GBP", 0.8),
		qt("GBP", "USD", 1.5),
		wire.Quote{Timestamp: late, Currency1: "USD", Currency2: "JPY", Rate: 150},
	)
	eng := newEngine(t)
	st, err := Replay(context.Background(), bytes.NewReader(data), eng, 1)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	// the arbitrage is reported once the third quote lands, then expires
	if st.Reports != 1 {
		t.Fatalf("unexpected stats %s", st)
	}
	if _, ok := eng.Graph().Edge("USD", "EUR"); ok {
		t.Fatalf("quote older than the expiry window survived")
	}
}

func TestReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	data := capture(time.Now(), qt("USD", "EUR", 0.9))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	st, err := ReplayFile(context.Background(), path, newEngine(t), 16)
	if err != nil || st.Frames != 1 {
		t.Fatalf("replay file: %s %v", st, err)
	}
	if _, err := ReplayFile(context.Background(), filepath.Join(t.TempDir(), "missing"), newEngine(t), 16); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
