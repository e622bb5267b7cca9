package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"

	"fxarb/internal/arbitrage"
	"fxarb/internal/config"
	"fxarb/internal/infra/health"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/wire"
)

// Subscriber owns the UDP socket between the publisher and the engine.
// Batches and detection ticks run on the goroutine that calls Run.
type Subscriber struct {
	conn      *net.UDPConn
	publisher *net.UDPAddr
	timeout   time.Duration
	bufSize   int
	engine    *arbitrage.Engine
	logger    log.Logger
	now       func() time.Time
}

// Dial binds the local socket. Nothing is sent until Subscribe.
func Dial(cfg config.Config, eng *arbitrage.Engine, logger log.Logger) (*Subscriber, error) {
	pub, err := net.ResolveUDPAddr("udp4", cfg.Feed.PublisherAddr)
	if err != nil {
		return nil, fmt.Errorf("feed: resolve publisher %q: %w", cfg.Feed.PublisherAddr, err)
	}
	local, err := net.ResolveUDPAddr("udp4", cfg.Feed.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("feed: resolve listen address %q: %w", cfg.Feed.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return nil, fmt.Errorf("feed: bind %s: %w", local, err)
	}
	return &Subscriber{
		conn:      conn,
		publisher: pub,
		timeout:   cfg.Feed.ReceiveTimeout,
		bufSize:   cfg.Feed.MaxDatagramBytes,
		engine:    eng,
		logger:    log.Component(logger, "feed"),
		now:       time.Now,
	}, nil
}

func (s *Subscriber) LocalAddr() netip.AddrPort {
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Subscribe sends the return address handshake to the publisher.
func (s *Subscriber) Subscribe() error {
	msg, err := wire.EncodeReturnAddress(s.LocalAddr())
	if err != nil {
		return err
	}
	if _, err := s.conn.WriteToUDP(msg, s.publisher); err != nil {
		return fmt.Errorf("feed: subscribe to %s: %w", s.publisher, err)
	}
	s.logger.Info().Str("publisher", s.publisher.String()).Str("local", s.LocalAddr().String()).Msg("subscribed to quote feed")
	return nil
}

// Run reads datagrams until ctx is done. A detection pass follows every
// datagram and every receive timeout, so quotes still expire when the
// publisher goes quiet.
func (s *Subscriber) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.SetReadDeadline(time.Unix(1, 0)) })
	defer stop()

	buf := make([]byte, s.bufSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.conn.SetReadDeadline(s.now().Add(s.timeout)); err != nil {
			return fmt.Errorf("feed: set deadline: %w", err)
		}
		n, from, err := s.conn.ReadFromUDP(buf)
		now := s.now()
		health.Beat(now)
		switch {
		case err == nil:
			metrics.DatagramsReceivedTotal.Inc()
			res := s.engine.HandleBatch(buf[:n])
			s.logger.Debug().Str("from", from.String()).Int("frames", res.Frames).
				Int("accepted", res.Accepted).Int("dropped", res.Dropped).Msg("datagram")
		case errors.Is(err, os.ErrDeadlineExceeded):
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.ReceiveTimeoutsTotal.Inc()
		case errors.Is(err, net.ErrClosed):
			return fmt.Errorf("feed: read: %w", err)
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Msg("receive failed")
		}
		s.engine.Tick(ctx, now)
	}
}

func (s *Subscriber) Close() error { return s.conn.Close() }
