package wire

import (
	"encoding/binary"
	"errors"
	"math"
	"net/netip"
	"testing"
)

// frame builds a frame by hand so the tests do not depend on EncodeFrame.
func frame(ts uint64, c1, c2 string, rate float64, order binary.ByteOrder) []byte {
	b := make([]byte, FrameSize)
	binary.BigEndian.PutUint64(b[0:8], ts)
	copy(b[8:11], c1)
	copy(b[11:14], c2)
	order.PutUint64(b[14:22], math.Float64bits(rate))
	for i := 22; i < FrameSize; i++ {
		b[i] = 0xff // reserved bytes must be ignored
	}
	return b
}

func TestDecodeSingleFrame(t *testing.T) {
	buf := frame(1_700_000_000_123_456, "USD", "EUR", 0.9123, binary.LittleEndian)
	frames, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frames.Len() != 1 {
		t.Fatalf("expected 1 frame, got %d", frames.Len())
	}
	q := frames.At(0)
	want := Quote{Timestamp: 1_700_000_000_123_456, Currency1: "USD", Currency2: "EUR", Rate: 0.9123}
	if q != want {
		t.Fatalf("got %+v, want %+v", q, want)
	}
	if q.Time().UnixMicro() != 1_700_000_000_123_456 {
		t.Fatalf("time conversion lost precision: %v", q.Time())
	}
}

func TestDecodeBigEndianRates(t *testing.T) {
	buf := frame(42, "GBP", "JPY", 187.25, binary.BigEndian)
	frames, err := Codec{RateOrder: binary.BigEndian}.DecodeFrames(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r := frames.At(0).Rate; r != 187.25 {
		t.Fatalf("rate = %v", r)
	}
}

func TestAllIsOrderedAndRestartable(t *testing.T) {
	var buf []byte
	buf = append(buf, frame(1, "USD", "EUR", 0.9, binary.LittleEndian)...)
	buf = append(buf, frame(2, "EUR", "GBP", 0.8, binary.LittleEndian)...)
	buf = append(buf, frame(3, "GBP", "USD", 1.5, binary.LittleEndian)...)
	frames, err := DecodeFrames(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for round := 0; round < 2; round++ {
		var ts []uint64
		for q := range frames.All() {
			ts = append(ts, q.Timestamp)
		}
		if len(ts) != 3 || ts[0] != 1 || ts[1] != 2 || ts[2] != 3 {
			t.Fatalf("round %d: timestamps %v", round, ts)
		}
	}
	n := 0
	for range frames.All() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("early break not honoured")
	}
}

func TestDecodeErrors(t *testing.T) {
	good := frame(1, "USD", "EUR", 0.9, binary.LittleEndian)
	bad := frame(2, "US\x00", "EUR", 0.9, binary.LittleEndian)
	high := frame(3, "USD", "E\xc3R", 0.9, binary.LittleEndian)

	cases := []struct {
		name  string
		buf   []byte
		want  error
		frame int
	}{
		{"empty", nil, ErrFrameLength, -1},
		{"short", good[:31], ErrFrameLength, -1},
		{"trailing bytes", append(append([]byte{}, good...), 1, 2, 3), ErrFrameLength, -1},
		{"control byte", append(append([]byte{}, good...), bad...), ErrCurrencyCode, 1},
		{"non ascii", high, ErrCurrencyCode, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeFrames(tc.buf)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var de *DecodeError
			if !errors.As(err, &de) || de.Frame != tc.frame {
				t.Fatalf("expected DecodeError at frame %d, got %#v", tc.frame, err)
			}
		})
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	q := Quote{Timestamp: 99, Currency1: "CHF", Currency2: "AUD", Rate: 1.7}
	f := EncodeFrame(q)
	frames, err := DecodeFrames(f[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := frames.At(0); got != q {
		t.Fatalf("got %+v, want %+v", got, q)
	}
}

func TestEncodeReturnAddress(t *testing.T) {
	got, err := EncodeReturnAddress(netip.MustParseAddrPort("127.0.0.1:50403"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{127, 0, 0, 1, 0xc4, 0xe3}
	if string(got) != string(want) {
		t.Fatalf("got % x, want % x", got, want)
	}

	mapped := netip.AddrPortFrom(netip.MustParseAddr("::ffff:10.1.2.3"), 80)
	got, err = EncodeReturnAddress(mapped)
	if err != nil || string(got) != string([]byte{10, 1, 2, 3, 0, 80}) {
		t.Fatalf("mapped address: % x, %v", got, err)
	}

	if _, err := EncodeReturnAddress(netip.MustParseAddrPort("[::1]:80")); !errors.Is(err, ErrNotIPv4) {
		t.Fatalf("expected ErrNotIPv4, got %v", err)
	}
}

func TestParseByteOrder(t *testing.T) {
	if o, err := ParseByteOrder("big"); err != nil || o != binary.BigEndian {
		t.Fatalf("big: %v %v", o, err)
	}
	if o, err := ParseByteOrder("little"); err != nil || o != binary.LittleEndian {
		t.Fatalf("little: %v %v", o, err)
	}
	if _, err := ParseByteOrder("middle"); err == nil {
		t.Fatalf("expected error")
	}
}
