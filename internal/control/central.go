package control

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/mini-rodalies-3d/railsim/internal/transit"
)

// Central drives the agencies of several transit systems in lockstep. Each
// tick runs every agency concurrently; the next tick starts only once all of
// them have finished.
type Central struct {
	agencies []*Agency
}

// NewCentral groups agencies; a second agency for the same system is ignored
func NewCentral(agencies ...*Agency) *Central {
	return &Central{agencies: lo.UniqBy(agencies, func(a *Agency) transit.System { return a.System() })}
}

// Agency returns the agency of a system, or nil
func (c *Central) Agency(s transit.System) *Agency {
	a, _ := lo.Find(c.agencies, func(a *Agency) bool { return a.System() == s })
	return a
}

func (c *Central) Agencies() []*Agency { return slices.Clone(c.agencies) }

// IsActive reports whether any system still has trains to run
func (c *Central) IsActive() bool {
	return lo.SomeBy(c.agencies, func(a *Agency) bool { return a.IsActive() })
}

// Step runs one tick on every agency
func (c *Central) Step(ctx context.Context, tick int) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range c.agencies {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a.Run(tick)
			return nil
		})
	}
	return g.Wait()
}

// Run steps ticks 0..ticks-1, stopping early once every system is idle or the
// context is cancelled. It returns the number of ticks run.
func (c *Central) Run(ctx context.Context, ticks int) (int, error) {
	for tick := 0; tick < ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return tick, err
		}
		if !c.IsActive() {
			return tick, nil
		}
		if err := c.Step(ctx, tick); err != nil {
			return tick, err
		}
	}
	return ticks, nil
}
