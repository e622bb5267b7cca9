package health

import (
	"net/http"
	"sync/atomic"
	"time"
)

var (
	ready      atomic.Bool
	lastBeat   atomic.Int64 // unix nanos of the last feed loop iteration
	staleAfter atomic.Int64 // nanos; 0 disables the liveness check
)

// SetReady marks readiness state
func SetReady(v bool) { ready.Store(v) }

// Ready returns current readiness
func Ready() bool { return ready.Load() }

// Beat records that the feed loop completed an iteration at t.
func Beat(t time.Time) { lastBeat.Store(t.UnixNano()) }

// SetStaleAfter makes Healthz fail once no Beat was seen for d.
func SetStaleAfter(d time.Duration) { staleAfter.Store(int64(d)) }

// Alive reports whether the feed loop has beaten recently enough.
func Alive(now time.Time) bool {
	limit := staleAfter.Load()
	last := lastBeat.Load()
	if limit <= 0 || last == 0 {
		return true
	}
	return now.UnixNano()-last <= limit
}

// Healthz is the liveness probe; it fails when the feed loop stalls.
func Healthz(w http.ResponseWriter, r *http.Request) {
	if !Alive(time.Now()) {
		http.Error(w, "feed loop stalled", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reflects application readiness state
func Readyz(w http.ResponseWriter, r *http.Request) {
	if Ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	http.Error(w, "not ready", http.StatusServiceUnavailable)
}
