package collector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"FountainProtocol/internal/model"
)

// Collector wraps a CountSource and checks what it returns.
type Collector struct {
	Source CountSource
	Clock  clockwork.Clock
	log    *slog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(log *slog.Logger, source CountSource, clock clockwork.Clock) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{Source: source, Clock: clock, log: log}
}

// Collect fetches the counts for date.
func (c *Collector) Collect(ctx context.Context, date string) (*model.Counts, error) {
	if _, err := model.ParseDay(date); err != nil {
		return nil, err
	}
	counts, err := c.Source.FetchCounts(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("fetch counts from %s: %w", c.Source.Name(), err)
	}
	if counts.ActiveHolders < 0 || counts.NewDonors < 0 {
		return nil, fmt.Errorf("%s returned negative counts: holders=%d donors=%d",
			c.Source.Name(), counts.ActiveHolders, counts.NewDonors)
	}
	if counts.Source == "" {
		counts.Source = c.Source.Name()
	}
	if counts.FetchedAt.IsZero() {
		counts.FetchedAt = c.Clock.Now().UTC()
	}
	c.log.Debug("counts collected", "date", date, "source", counts.Source,
		"active_holders", counts.ActiveHolders, "new_donors", counts.NewDonors)
	return &counts, nil
}
