package arbitrage

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestPrinterQuoteLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, true).InLocation(time.UTC)
	p.PublishQuote(q(0, "USD", "EUR", 0.9))
	if got, want := buf.String(), "Tue Jan  2 03:04:05 2024 USD EUR 0.9\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	buf.Reset()
	NewPrinter(&buf, false).PublishQuote(q(0, "USD", "EUR", 0.9))
	if buf.Len() != 0 {
		t.Fatalf("quote printed while disabled: %q", buf.String())
	}
}

func TestPrinterReport(t *testing.T) {
	var buf bytes.Buffer
	eng := newEngine(t, NewPrinter(&buf, false))
	eng.HandleBatch(batch(
		q(0, "USD", "EUR", 0.9),
		q(0, "EUR", "GBP", 0.8),
		q(0, "GBP", "USD", 1.5),
	))
	if rep := eng.Tick(context.Background(), base); rep == nil {
		t.Fatalf("expected a report")
	}
	want := "ARBITRAGE:\n" +
		"\tstart with USD 100\n" +
		"\texchange USD for EUR at 0.9 --> EUR 90\n" +
		"\texchange EUR for GBP at 0.8 --> GBP 72\n" +
		"\texchange GBP for USD at 1.5 --> USD 108\n"
	if buf.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", buf.String(), want)
	}
}
