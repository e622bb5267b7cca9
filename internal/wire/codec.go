// Package wire encodes and decodes the binary quote feed.
//
// A feed datagram carries one or more 32-byte frames:
//
//	[0,8)   timestamp, big-endian uint64, microseconds since the Unix epoch
//	[8,11)  currency1, ASCII
//	[11,14) currency2, ASCII
//	[14,22) rate, IEEE-754 float64 in the publisher's byte order
//	[22,32) reserved
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"math"
	"net/netip"
	"time"

	"fxarb/internal/graph"
)

const (
	FrameSize      = 32
	CodeSize       = 3
	ReturnAddrSize = 6
)

var (
	ErrFrameLength  = errors.New("buffer length is not a positive multiple of the frame size")
	ErrCurrencyCode = errors.New("currency code is not printable ASCII")
	ErrNotIPv4      = errors.New("return address is not IPv4")
)

// DecodeError describes a rejected datagram.
type DecodeError struct {
	Len   int // buffer length
	Frame int // offending frame index, -1 for length errors
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("wire: %d bytes: %v", e.Len, e.Err)
	}
	return fmt.Sprintf("wire: frame %d of %d bytes: %v", e.Frame, e.Len, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Quote is one decoded frame.
type Quote struct {
	Timestamp uint64
	Currency1 graph.Currency
	Currency2 graph.Currency
	Rate      float64
}

// Time converts the quote timestamp to wall clock time.
func (q Quote) Time() time.Time { return time.UnixMicro(int64(q.Timestamp)) }

// Codec decodes frames with a fixed rate byte order. The zero value uses
// little-endian rates.
type Codec struct {
	RateOrder binary.ByteOrder
}

var defaultCodec = Codec{RateOrder: binary.LittleEndian}

// DecodeFrames validates buf with the default codec.
func DecodeFrames(buf []byte) (Frames, error) { return defaultCodec.DecodeFrames(buf) }

// EncodeFrame encodes q with the default codec.
func EncodeFrame(q Quote) [FrameSize]byte { return defaultCodec.EncodeFrame(q) }

// DecodeFrames checks the whole buffer up front so that a batch is either
// entirely usable or rejected; records are decoded lazily from the result.
func (c Codec) DecodeFrames(buf []byte) (Frames, error) {
	if len(buf) == 0 || len(buf)%FrameSize != 0 {
		return Frames{}, &DecodeError{Len: len(buf), Frame: -1, Err: ErrFrameLength}
	}
	for i := 0; i < len(buf)/FrameSize; i++ {
		f := buf[i*FrameSize : (i+1)*FrameSize]
		if !printable(f[8:14]) {
			return Frames{}, &DecodeError{Len: len(buf), Frame: i, Err: ErrCurrencyCode}
		}
	}
	return Frames{buf: buf, order: c.order()}, nil
}

func (c Codec) EncodeFrame(q Quote) [FrameSize]byte {
	var f [FrameSize]byte
	binary.BigEndian.PutUint64(f[0:8], q.Timestamp)
	copy(f[8:11], q.Currency1)
	copy(f[11:14], q.Currency2)
	c.order().PutUint64(f[14:22], math.Float64bits(q.Rate))
	return f
}

func (c Codec) order() binary.ByteOrder {
	if c.RateOrder == nil {
		return binary.LittleEndian
	}
	return c.RateOrder
}

// Frames is a validated datagram. It decodes on demand and can be iterated
// any number of times.
type Frames struct {
	buf   []byte
	order binary.ByteOrder
}

func (f Frames) Len() int { return len(f.buf) / FrameSize }

func (f Frames) At(i int) Quote {
	b := f.buf[i*FrameSize : (i+1)*FrameSize]
	return Quote{
		Timestamp: binary.BigEndian.Uint64(b[0:8]),
		Currency1: graph.Currency(b[8:11]),
		Currency2: graph.Currency(b[11:14]),
		Rate:      math.Float64frombits(f.order.Uint64(b[14:22])),
	}
}

// All yields the quotes in buffer order.
func (f Frames) All() iter.Seq[Quote] {
	return func(yield func(Quote) bool) {
		for i := 0; i < f.Len(); i++ {
			if !yield(f.At(i)) {
				return
			}
		}
	}
}

// EncodeReturnAddress packs the subscriber's listening address for the
// publisher handshake: 4 address bytes then 2 port bytes, network order.
func EncodeReturnAddress(ap netip.AddrPort) ([]byte, error) {
	addr := ap.Addr().Unmap()
	if !addr.Is4() {
		return nil, fmt.Errorf("wire: %s: %w", ap, ErrNotIPv4)
	}
	out := make([]byte, ReturnAddrSize)
	a4 := addr.As4()
	copy(out[0:4], a4[:])
	binary.BigEndian.PutUint16(out[4:6], ap.Port())
	return out, nil
}

// ParseByteOrder maps "little" or "big" to a byte order.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch s {
	case "little", "le", "":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("wire: unknown byte order %q", s)
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
