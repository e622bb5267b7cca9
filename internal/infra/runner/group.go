package runner

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Group runs named workers under one context. The first worker to fail
// cancels the others; Wait returns that first error.
type Group struct {
	eg *errgroup.Group
}

func New(ctx context.Context) (*Group, context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{eg: eg}, ctx
}

// Go starts fn. A worker returning context.Canceled is treated as a clean exit.
func (g *Group) Go(name string, fn func() error) {
	g.eg.Go(func() error {
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	})
}

func (g *Group) Wait() error { return g.eg.Wait() }
