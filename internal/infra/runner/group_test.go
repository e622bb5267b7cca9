package runner

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFirstErrorCancelsSiblings(t *testing.T) {
	g, ctx := New(context.Background())
	boom := errors.New("boom")
	g.Go("feed", func() error { return boom })
	g.Go("http", func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return errors.New("sibling was not cancelled")
		}
	})
	err := g.Wait()
	if !errors.Is(err, boom) || !strings.HasPrefix(err.Error(), "feed:") {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
}

func TestCanceledIsClean(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g, ctx := New(parent)
	g.Go("feed", func() error { <-ctx.Done(); return ctx.Err() })
	cancel()
	if err := g.Wait(); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
}
