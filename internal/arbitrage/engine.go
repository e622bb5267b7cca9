package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fxarb/internal/config"
	"fxarb/internal/graph"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/wire"

	"github.com/google/uuid"
)

// ValidationError rejects a quote before it touches the graph.
type ValidationError struct {
	Quote  wire.Quote
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("arbitrage: rejected %s/%s quote at %d: %s", e.Quote.Currency1, e.Quote.Currency2, e.Quote.Timestamp, e.Reason)
}

// Outcome of offering one quote to the engine.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeDropped          // older than the high-water mark
	OutcomeRejected         // failed validation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return metrics.OutcomeAccepted
	case OutcomeDropped:
		return metrics.OutcomeDropped
	case OutcomeRejected:
		return metrics.OutcomeRejected
	}
	return "unknown"
}

// BatchResult summarises one datagram.
type BatchResult struct {
	Frames   int
	Accepted int
	Dropped  int
	Rejected int
	Err      error // decode failure; the batch was skipped
}

// Engine owns the rate graph. It is single threaded by contract: the feed
// loop calls HandleBatch/Accept and Tick from one goroutine.
type Engine struct {
	codec     wire.Codec
	graph     *graph.RateGraph
	detector  *graph.CycleDetector
	ttl       time.Duration
	notional  float64
	highWater uint64
	sinks     []ReportSink
	logger    log.Logger
}

func New(cfg config.Config, logger log.Logger, sinks ...ReportSink) (*Engine, error) {
	order, err := wire.ParseByteOrder(cfg.Feed.RateByteOrder)
	if err != nil {
		return nil, err
	}
	return &Engine{
		codec: wire.Codec{RateOrder: order},
		graph: graph.New(),
		detector: graph.NewCycleDetector(graph.DetectorOptions{
			Reference:           graph.Currency(cfg.Arbitrage.ReferenceCurrency),
			RelaxationTolerance: cfg.Arbitrage.RelaxationTolerance,
			CycleTolerance:      cfg.Arbitrage.CycleTolerance,
		}),
		ttl:      cfg.Arbitrage.PriceExpirationInterval,
		notional: cfg.Arbitrage.StartingNotional,
		sinks:    sinks,
		logger:   log.Component(logger, "engine"),
	}, nil
}

// Graph exposes the live graph for inspection. Callers must not mutate it
// and must stay on the engine's goroutine.
func (e *Engine) Graph() *graph.RateGraph { return e.graph }

func (e *Engine) HighWater() uint64 { return e.highWater }

// HandleBatch decodes one datagram and offers every quote in transport
// order. A malformed datagram is skipped as a whole.
func (e *Engine) HandleBatch(buf []byte) BatchResult {
	frames, err := e.codec.DecodeFrames(buf)
	if err != nil {
		metrics.DecodeErrorsTotal.Inc()
		e.logger.Warn().Err(err).Int("bytes", len(buf)).Msg("skipping malformed datagram")
		return BatchResult{Err: err}
	}
	res := BatchResult{Frames: frames.Len()}
	for q := range frames.All() {
		out, _ := e.Accept(q)
		switch out {
		case OutcomeAccepted:
			res.Accepted++
		case OutcomeDropped:
			res.Dropped++
		case OutcomeRejected:
			res.Rejected++
		}
	}
	return res
}

// Accept applies the monotonic gate and then Ingest. Quotes older than the
// newest accepted one are dropped without error.
func (e *Engine) Accept(q wire.Quote) (Outcome, error) {
	if q.Timestamp < e.highWater {
		metrics.QuotesTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
		e.logger.Debug().Uint64("ts", q.Timestamp).Uint64("high_water", e.highWater).
			Str("pair", pair(q)).Msg("ignoring out of order quote")
		return OutcomeDropped, nil
	}
	if err := e.Ingest(q); err != nil {
		metrics.QuotesTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		e.logger.Warn().Err(err).Msg("rejecting quote")
		return OutcomeRejected, err
	}
	e.highWater = q.Timestamp
	metrics.QuotesTotal.WithLabelValues(metrics.OutcomeAccepted).Inc()
	for _, s := range e.sinks {
		if qs, ok := s.(QuoteSink); ok {
			qs.PublishQuote(q)
		}
	}
	return OutcomeAccepted, nil
}

// Ingest stores both directions of q. Nothing is written unless the quote
// is valid.
func (e *Engine) Ingest(q wire.Quote) error {
	switch {
	case !(q.Rate > 0):
		return &ValidationError{Quote: q, Reason: fmt.Sprintf("rate %v is not positive", q.Rate)}
	case math.IsInf(q.Rate, 1):
		return &ValidationError{Quote: q, Reason: "rate is infinite"}
	case q.Currency1 == q.Currency2:
		return &ValidationError{Quote: q, Reason: "currencies are identical"}
	}
	w := -math.Log(q.Rate)
	e.graph.Upsert(q.Currency1, q.Currency2, w, q.Rate, q.Timestamp)
	e.graph.Upsert(q.Currency2, q.Currency1, -w, 1/q.Rate, q.Timestamp)
	return nil
}

// Tick evicts stale quotes, runs one detection pass and publishes a report
// when the cycle runs through the reference currency. It returns the
// report, or nil when nothing actionable was found.
func (e *Engine) Tick(ctx context.Context, now time.Time) *Report {
	evicted := e.graph.EvictExpired(uint64(now.UnixMicro()), e.ttl)
	for _, k := range evicted {
		e.logger.Debug().Str("edge", k.String()).Msg("removing stale quote")
	}
	metrics.EdgesEvictedTotal.Add(float64(len(evicted)))
	metrics.GraphNodes.Set(float64(e.graph.NodeCount()))
	metrics.GraphEdges.Set(float64(e.graph.EdgeCount()))

	start := time.Now()
	det, err := e.detector.DetectDetailed(e.graph)
	metrics.DetectionLatencyMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		var ie *graph.InconsistentGraphError
		if errors.As(err, &ie) {
			metrics.InconsistentGraphTotal.Inc()
		}
		e.logger.Error().Err(err).Str("seed", string(det.Seed)).Msg("abandoning detection pass")
		return nil
	}
	if det.Artifact {
		metrics.CyclesTotal.WithLabelValues(metrics.CycleArtifact).Inc()
		e.logger.Debug().Float64("weight_sum", det.WeightSum).Msg("ignoring negative cycle within tolerance")
		return nil
	}
	if det.Cycle == nil {
		return nil
	}
	ref := e.detector.Reference()
	if !det.Cycle.Contains(ref) {
		metrics.CyclesTotal.WithLabelValues(metrics.CycleNotActionable).Inc()
		e.logger.Debug().Strs("cycle", names(det.Cycle)).Str("reference", string(ref)).
			Msg("reference currency is not part of the cycle")
		return nil
	}

	rep, err := e.buildReport(det.Cycle, now)
	if err != nil {
		metrics.InconsistentGraphTotal.Inc()
		e.logger.Error().Err(err).Msg("abandoning arbitrage report")
		return nil
	}
	metrics.CyclesTotal.WithLabelValues(metrics.CycleActionable).Inc()
	metrics.LastMultiplier.Set(rep.Multiplier)
	e.logger.Info().Str("id", rep.ID).Strs("path", names(rep.Path)).
		Float64("final", rep.Final).Float64("multiplier", rep.Multiplier).Float64("profit_bps", rep.ProfitBps).Msg("arbitrage detected")

	for _, s := range e.sinks {
		if err := s.Publish(ctx, rep); err != nil {
			metrics.ReportsPublishedTotal.WithLabelValues(s.Name(), "error").Inc()
			e.logger.Warn().Err(err).Str("sink", s.Name()).Msg("report sink failed")
			continue
		}
		metrics.ReportsPublishedTotal.WithLabelValues(s.Name(), "ok").Inc()
	}
	return &rep
}

// buildReport walks the cycle from the reference currency multiplying the
// quoted rates, not the log weights.
func (e *Engine) buildReport(c graph.Cycle, now time.Time) (Report, error) {
	rep := Report{
		ID:         uuid.NewString(),
		DetectedAt: now.UTC(),
		Reference:  c[0],
		Start:      e.notional,
	}
	value := e.notional
	for i, from := range c {
		to := c[(i+1)%len(c)]
		edge, ok := e.graph.Edge(from, to)
		if !ok {
			return Report{}, &graph.InconsistentGraphError{Edge: &graph.EdgeKey{From: from, To: to}}
		}
		value *= edge.Rate
		rep.Hops = append(rep.Hops, Hop{From: from, To: to, Rate: edge.Rate, Value: value})
		rep.Path = append(rep.Path, from)
	}
	rep.Path = append(rep.Path, c[0])
	rep.Final = value
	rep.Multiplier = value / e.notional
	rep.ProfitBps = grossBps(rep.Multiplier)
	return rep, nil
}

func pair(q wire.Quote) string { return string(q.Currency1) + "/" + string(q.Currency2) }

func names(cs []graph.Currency) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
