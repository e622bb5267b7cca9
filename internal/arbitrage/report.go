package arbitrage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"fxarb/internal/graph"
	"fxarb/internal/wire"

	"github.com/shopspring/decimal"
)

// Hop is one exchange of a report; Value is the holding after the hop.
type Hop struct {
	From  graph.Currency `json:"from"`
	To    graph.Currency `json:"to"`
	Rate  float64        `json:"rate"`
	Value float64        `json:"value"`
}

// Report is an actionable arbitrage loop starting and ending in the
// reference currency.
type Report struct {
	ID         string           `json:"id"`
	DetectedAt time.Time        `json:"detected_at"`
	Reference  graph.Currency   `json:"reference"`
	Path       []graph.Currency `json:"path"` // closed: first == last
	Hops       []Hop            `json:"hops"`
	Start      float64          `json:"start"`
	Final      float64          `json:"final"`
	Multiplier float64          `json:"multiplier"`
	ProfitBps  float64          `json:"profit_bps"`
}

// ReportSink receives every actionable report. Publish is called from the
// engine goroutine and should not block for long.
type ReportSink interface {
	Name() string
	Publish(ctx context.Context, r Report) error
}

// Optional capability: sinks that also want each accepted quote.
type QuoteSink interface {
	PublishQuote(q wire.Quote)
}

// Printer writes the human readable feed log: one line per accepted quote
// and a block per arbitrage report.
type Printer struct {
	w      io.Writer
	loc    *time.Location
	quotes bool
}

func NewPrinter(w io.Writer, printQuotes bool) *Printer {
	return &Printer{w: w, loc: time.Local, quotes: printQuotes}
}

// InLocation sets the zone used for quote timestamps.
func (p *Printer) InLocation(loc *time.Location) *Printer { p.loc = loc; return p }

func (p *Printer) Name() string { return "printer" }

func (p *Printer) PublishQuote(q wire.Quote) {
	if !p.quotes {
		return
	}
	fmt.Fprintf(p.w, "%s %s %s %s\n", q.Time().In(p.loc).Format(time.ANSIC), q.Currency1, q.Currency2, formatRate(q.Rate))
}

func (p *Printer) Publish(_ context.Context, r Report) error {
	_, err := io.WriteString(p.w, FormatReport(r))
	return err
}

// FormatReport renders r as:
//
//	ARBITRAGE:
//		start with USD 100
//		exchange USD for EUR at 0.9 --> EUR 90
func FormatReport(r Report) string {
	s := "ARBITRAGE:\n"
	s += fmt.Sprintf("\tstart with %s %s\n", r.Reference, money(r.Start))
	for _, h := range r.Hops {
		s += fmt.Sprintf("\texchange %s for %s at %s --> %s %s\n", h.From, h.To, formatRate(h.Rate), h.To, money(h.Value))
	}
	return s
}

// grossBps is the round-trip gain in basis points.
func grossBps(multiplier float64) float64 { return (multiplier - 1) * 10000 }

func formatRate(r float64) string { return strconv.FormatFloat(r, 'g', -1, 64) }

// money rounds away float noise such as 108.00000000000001.
func money(v float64) string { return decimal.NewFromFloat(v).Round(6).String() }
