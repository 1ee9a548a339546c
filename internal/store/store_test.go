package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"FountainProtocol/internal/model"
	"FountainProtocol/internal/testutil"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(testutil.NewLogger(), filepath.Join(t.TempDir(), "data", "state.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(testutil.NewLogger(), filepath.Join(t.TempDir(), "oracle.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func testSnapshot(date string, holders int64, score string) *model.DailySnapshot {
	return &model.DailySnapshot{
		Date:                    date,
		ActiveHolders:           holders,
		NewDonors:               2,
		PreviousActiveHolders:   3,
		PreviousCumulativeScore: decimal.Zero,
		GrowthRate:              decimal.RequireFromString("1"),
		CumulativeScore:         decimal.RequireFromString(score),
		GrowthMultiplier:        decimal.RequireFromString("1.1"),
		DonorBooster:            0,
		FinalEntitlement:        55,
		TotalAllocated:          holders * 55,
		ComputedAt:              time.Date(2024, 5, 1, 0, 5, 0, 123456789, time.UTC),
	}
}

func jsonOf(t *testing.T, v any) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("empty store has no prior state or snapshot", func(t *testing.T) {
				s := open(t)
				st, err := s.GetPriorState(ctx, "2024-05-01")
				require.NoError(t, err)
				require.Nil(t, st)
				snap, err := s.GetSnapshot(ctx, "2024-05-01")
				require.NoError(t, err)
				require.Nil(t, snap)
			})

			t.Run("commit day round trips", func(t *testing.T) {
				s := open(t)
				snap := testSnapshot("2024-05-01", 6, "0.1")
				st := snap.State()
				require.NoError(t, s.CommitDay(ctx, &st, snap))

				got, err := s.GetSnapshot(ctx, "2024-05-01")
				require.NoError(t, err)
				require.NotNil(t, got)
				require.Equal(t, jsonOf(t, snap), jsonOf(t, got))

				prior, err := s.GetPriorState(ctx, "2024-05-02")
				require.NoError(t, err)
				require.NotNil(t, prior)
				require.Equal(t, int64(6), prior.ActiveHolders)
				require.True(t, prior.CumulativeScore.Equal(decimal.RequireFromString("0.1")))

				sameDay, err := s.GetPriorState(ctx, "2024-05-01")
				require.NoError(t, err)
				require.Nil(t, sameDay, "prior state is strictly before the date")
			})

			t.Run("second commit for a date is rejected", func(t *testing.T) {
				s := open(t)
				snap := testSnapshot("2024-05-01", 6, "0.1")
				st := snap.State()
				require.NoError(t, s.CommitDay(ctx, &st, snap))

				other := testSnapshot("2024-05-01", 9, "0.2")
				otherState := other.State()
				require.ErrorIs(t, s.CommitDay(ctx, &otherState, other), ErrAlreadyExists)
				require.ErrorIs(t, s.PutSnapshot(ctx, other), ErrAlreadyExists)
				require.ErrorIs(t, s.PutState(ctx, &otherState), ErrAlreadyExists)

				got, err := s.GetSnapshot(ctx, "2024-05-01")
				require.NoError(t, err)
				require.Equal(t, int64(6), got.ActiveHolders)
			})

			t.Run("prior state skips gaps", func(t *testing.T) {
				s := open(t)
				for _, day := range []struct {
					date    string
					holders int64
				}{{"2024-05-01", 3}, {"2024-05-02", 4}, {"2024-05-05", 8}} {
					snap := testSnapshot(day.date, day.holders, "0.1")
					st := snap.State()
					require.NoError(t, s.PutState(ctx, &st))
					require.NoError(t, s.PutSnapshot(ctx, snap))
				}
				prior, err := s.GetPriorState(ctx, "2024-05-05")
				require.NoError(t, err)
				require.Equal(t, "2024-05-02", prior.Date)
				require.Equal(t, int64(4), prior.ActiveHolders)

				list, err := s.ListSnapshots(ctx, 2)
				require.NoError(t, err)
				require.Len(t, list, 2)
				require.Equal(t, "2024-05-05", list[0].Date)
				require.Equal(t, "2024-05-02", list[1].Date)

				all, err := s.ListSnapshots(ctx, 0)
				require.NoError(t, err)
				require.Len(t, all, 3)
			})
		})
	}
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := NewFileStore(testutil.NewLogger(), path)
	require.NoError(t, err)
	snap := testSnapshot("2024-05-01", 6, "0.1")
	st := snap.State()
	require.NoError(t, s.CommitDay(ctx, &st, snap))

	reopened, err := NewFileStore(testutil.NewLogger(), path)
	require.NoError(t, err)
	got, err := reopened.GetSnapshot(ctx, "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, jsonOf(t, snap), jsonOf(t, got))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "oracle.db")

	s, err := NewSQLiteStore(testutil.NewLogger(), path)
	require.NoError(t, err)
	snap := testSnapshot("2024-05-01", 6, "0.1")
	st := snap.State()
	require.NoError(t, s.CommitDay(ctx, &st, snap))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(testutil.NewLogger(), path)
	require.NoError(t, err)
	defer reopened.Close()
	prior, err := reopened.GetPriorState(ctx, "2024-05-02")
	require.NoError(t, err)
	require.Equal(t, "2024-05-01", prior.Date)
	require.True(t, snap.ComputedAt.Equal(prior.UpdatedAt))
}

func TestOpen_SelectsBackend(t *testing.T) {
	t.Parallel()
	log := testutil.NewLogger()
	dir := t.TempDir()

	s, err := Open(log, filepath.Join(dir, "a.db"), filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	s.Close()

	s, err = Open(log, "", filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	s, err = Open(log, "", "")
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
}
