package collector

import (
	"context"

	"FountainProtocol/internal/model"
)

// CountSource returns the holder and donor counts for a day. Re-queries within the
// same day must return the same counts.
type CountSource interface {
	FetchCounts(ctx context.Context, date string) (model.Counts, error)
	Name() string
}
