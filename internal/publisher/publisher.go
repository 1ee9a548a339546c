package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FountainProtocol/internal/metrics"
	"FountainProtocol/internal/model"
)

// Publisher writes a snapshot to an append-only audit log. Best-effort.
type Publisher interface {
	Publish(ctx context.Context, snap *model.DailySnapshot) (*model.PublishReceipt, error)
	Name() string
}

// Multi fans a snapshot out to every publisher. It returns the first receipt and
// the joined errors of the publishers that failed.
type Multi struct {
	log        *slog.Logger
	publishers []Publisher
}

func NewMulti(log *slog.Logger, publishers ...Publisher) *Multi {
	return &Multi{log: log, publishers: publishers}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured publishers.
func (m *Multi) Len() int { return len(m.publishers) }

func (m *Multi) Publish(ctx context.Context, snap *model.DailySnapshot) (*model.PublishReceipt, error) {
	var (
		first *model.PublishReceipt
		errs  []error
	)
	for _, p := range m.publishers {
		receipt, err := p.Publish(ctx, snap)
		if err != nil {
			metrics.PublishTotal.WithLabelValues(p.Name(), "error").Inc()
			m.log.Warn("publish failed", "publisher", p.Name(), "date", snap.Date, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		metrics.PublishTotal.WithLabelValues(p.Name(), "ok").Inc()
		if first == nil {
			first = receipt
		}
	}
	return first, errors.Join(errs...)
}
