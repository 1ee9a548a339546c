package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"FountainProtocol/internal/testutil"
)

func TestCollector_Collect(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC)
	src := NewStaticSource(6, 1)
	src.Set("2024-05-02", 7, 0)
	c := NewCollector(testutil.NewLogger(), src, clockwork.NewFakeClockAt(now))

	counts, err := c.Collect(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, int64(6), counts.ActiveHolders)
	require.Equal(t, int64(1), counts.NewDonors)
	require.Equal(t, "static", counts.Source)
	require.Equal(t, now, counts.FetchedAt)

	counts, err = c.Collect(context.Background(), "2024-05-02")
	require.NoError(t, err)
	require.Equal(t, int64(7), counts.ActiveHolders)
}

func TestCollector_RejectsBadInput(t *testing.T) {
	t.Parallel()
	src := NewStaticSource(-1, 0)
	c := NewCollector(testutil.NewLogger(), src, nil)

	_, err := c.Collect(context.Background(), "2024-13-01")
	require.Error(t, err)
	require.Equal(t, 0, src.Calls, "invalid dates are rejected before any query")

	_, err = c.Collect(context.Background(), "2024-05-01")
	require.ErrorContains(t, err, "negative counts")

	src.Err = errors.New("mirror down")
	_, err = c.Collect(context.Background(), "2024-05-01")
	require.ErrorContains(t, err, "fetch counts from static: mirror down")
}
