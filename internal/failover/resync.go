package failover

import (
	"context"
	"fmt"
)

// resync replays the other backend into each Degraded one.  It never
// fails the calling operation: a replay error leaves the target Degraded
// until the next call tries again.  The primary is repaired first, so when
// both are Degraded the secondary is then refilled from the repaired
// primary.  A source that is itself Degraded is still read.
func (c *Coordinator) resync(ctx context.Context) {
	c.resyncMu.Lock()
	defer c.resyncMu.Unlock()

	for _, pair := range [][2]*member{{c.primary, c.secondary}, {c.secondary, c.primary}} {
		if ctx.Err() != nil {
			return
		}
		target, source := pair[0], pair[1]
		if c.statusOf(target) != Degraded {
			continue
		}

		n, err := c.replay(ctx, source, target)
		if err != nil {
			c.log.Warn().Str("target", target.Name).Str("source", source.Name).Err(err).Msg("resync failed")
			continue
		}

		c.mu.Lock()
		target.status = Healthy
		c.mu.Unlock()

		report := ResyncReport{Target: target.Name, Source: source.Name, Replayed: n, CompletedAt: c.now().UTC()}
		c.log.Info().Str("target", target.Name).Str("source", source.Name).Int("replayed", n).Msg("resync completed")
		if c.notifier != nil {
			c.notifier.ResyncCompleted(ctx, report)
		}
	}
}

// replay copies every record of source into target through target.Save.
// A source that cannot be listed is itself marked Degraded.
func (c *Coordinator) replay(ctx context.Context, source, target *member) (int, error) {
	records, err := source.Store.FindAll(ctx)
	if err != nil {
		c.record(ctx, source, "resync", err)
		return 0, fmt.Errorf("read %s: %w", source.Name, err)
	}
	for i, p := range records {
		if err := target.Store.Save(ctx, p); err != nil {
			return i, fmt.Errorf("replay record %d of %d into %s: %w", i+1, len(records), target.Name, err)
		}
	}
	return len(records), nil
}
