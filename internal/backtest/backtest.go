// Package backtest replays a captured quote stream through the engine
// without a network.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"fxarb/internal/arbitrage"
	"fxarb/internal/wire"
)

// Stats summarises a replay.
type Stats struct {
	Batches      int
	Frames       int
	Accepted     int
	Dropped      int
	Rejected     int
	DecodeErrors int
	Reports      int
}

func (s Stats) String() string {
	return fmt.Sprintf("batches=%d frames=%d accepted=%d dropped=%d rejected=%d decode_errors=%d reports=%d",
		s.Batches, s.Frames, s.Accepted, s.Dropped, s.Rejected, s.DecodeErrors, s.Reports)
}

// Replay feeds r to eng in datagrams of batchFrames frames, as if they had
// arrived on the wire. The capture format is bare frames back to back.
// Each batch is followed by a detection pass at the time of the newest
// accepted quote, so expiry follows the recorded clock rather than ours.
func Replay(ctx context.Context, r io.Reader, eng *arbitrage.Engine, batchFrames int) (Stats, error) {
	if batchFrames <= 0 {
		batchFrames = 1
	}
	var st Stats
	buf := make([]byte, batchFrames*wire.FrameSize)
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			st.Batches++
			res := eng.HandleBatch(buf[:n])
			if res.Err != nil {
				st.DecodeErrors++
			}
			st.Frames += res.Frames
			st.Accepted += res.Accepted
			st.Dropped += res.Dropped
			st.Rejected += res.Rejected
			if hw := eng.HighWater(); hw > 0 {
				if rep := eng.Tick(ctx, time.UnixMicro(int64(hw))); rep != nil {
					st.Reports++
				}
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return st, nil
		default:
			return st, err
		}
	}
}

// ReplayFile opens path and replays it.
func ReplayFile(ctx context.Context, path string, eng *arbitrage.Engine, batchFrames int) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()
	return Replay(ctx, f, eng, batchFrames)
}
