package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FountainProtocol/internal/calculator"
	"FountainProtocol/internal/collector"
	"FountainProtocol/internal/oracle"
	"FountainProtocol/internal/retry"
	"FountainProtocol/internal/store"
	"FountainProtocol/internal/testutil"
)

type fakeAlerter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAlerter) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAlerter) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestScheduler(t *testing.T) (*Scheduler, *collector.StaticSource, *fakeAlerter) {
	t.Helper()
	mem := store.NewMemoryStore()
	src := collector.NewStaticSource(10, 2)
	o, err := oracle.New(oracle.Config{
		Logger:    testutil.NewLogger(),
		Clock:     clockwork.NewFakeClockAt(time.Date(2024, 6, 2, 0, 5, 0, 0, time.UTC)),
		Params:    calculator.DefaultParams(),
		Source:    src,
		States:    mem,
		Snapshots: mem,
	})
	require.NoError(t, err)
	alerter := &fakeAlerter{}
	return NewScheduler(context.Background(), testutil.NewLogger(), o, alerter), src, alerter
}

func TestRunNow(t *testing.T) {
	s, src, alerter := newTestScheduler(t)

	res, err := s.RunNow()
	require.NoError(t, err)
	require.Equal(t, oracle.StatusComputed, res.Status)
	require.Equal(t, "2024-06-01", res.Snapshot.Date)

	res, err = s.RunNow()
	require.NoError(t, err)
	require.Equal(t, oracle.StatusAlreadyComputed, res.Status)
	require.Equal(t, 1, src.Calls)
	require.Empty(t, alerter.messages())
}

func TestRunNow_FailureAlerts(t *testing.T) {
	s, src, alerter := newTestScheduler(t)
	src.Err = errors.New("mirror down")

	_, err := s.RunNow()
	require.ErrorIs(t, err, oracle.ErrInputUnavailable)
	msgs := alerter.messages()
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "2024-06-01")
	require.Contains(t, msgs[0], "mirror down")
}

func TestHandleCommand(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	require.Contains(t, s.HandleCommand(ctx, "/today"), "No snapshot for 2024-06-01")
	require.Contains(t, s.HandleCommand(ctx, "/state"), "No day computed yet")
	require.Contains(t, s.HandleCommand(ctx, "/history"), "No snapshots yet")

	reply := s.HandleCommand(ctx, "/run")
	require.Contains(t, reply, "✅ Snapshot for 2024-06-01 computed: 50 per holder, 500 total.")

	require.Contains(t, s.HandleCommand(ctx, "/run"), "already computed")
	require.Contains(t, s.HandleCommand(ctx, "/today@FountainBot"), "Fountain daily snapshot")
	require.Contains(t, s.HandleCommand(ctx, "/state"), "Last computed day: 2024-06-01")
	require.Contains(t, s.HandleCommand(ctx, "/history"), "2024-06-01")
	require.Contains(t, s.HandleCommand(ctx, "hello"), "Available commands")
}

func TestHandleCommand_RunFailureRepliesThroughAlert(t *testing.T) {
	s, src, alerter := newTestScheduler(t)
	src.Err = errors.New("timeout")

	require.Equal(t, "", s.HandleCommand(context.Background(), "/run"))
	require.Len(t, alerter.messages(), 1)
}

func TestRegister_InvalidCron(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.Error(t, s.Register("not a cron"))
}

func TestScheduledRun(t *testing.T) {
	s, src, _ := newTestScheduler(t)
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		snap, err := s.Oracle.Snapshot(context.Background(), "2024-06-01")
		return err == nil && snap != nil
	}, 5*time.Second, 50*time.Millisecond)

	src.Set("2024-06-01", 999, 0)
	snap, err := s.Oracle.Snapshot(context.Background(), "2024-06-01")
	require.NoError(t, err)
	require.Equal(t, int64(10), snap.ActiveHolders)
}

// donorMirror serves two membership holders and the donor badges minted
// before the clock's current time, newest first.
func donorMirror(t *testing.T, clock clockwork.Clock, minted []time.Time) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tokens/0.0.100/balances", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("timestamp"), "a closed day reads the end-of-day balances")
		json.NewEncoder(w).Encode(map[string]any{
			"balances": []map[string]any{
				{"account": "0.0.1001", "balance": 1},
				{"account": "0.0.1002", "balance": 2},
			},
			"links": map[string]any{"next": nil},
		})
	})
	mux.HandleFunc("/api/v1/tokens/0.0.200/nfts", func(w http.ResponseWriter, r *http.Request) {
		var nfts []map[string]any
		for i := len(minted) - 1; i >= 0; i-- {
			at := minted[i]
			if !at.Before(clock.Now()) {
				continue
			}
			nfts = append(nfts, map[string]any{
				"account_id":        fmt.Sprintf("0.0.%d", 3000+i),
				"serial_number":     i + 1,
				"created_timestamp": fmt.Sprintf("%d.%09d", at.Unix(), at.Nanosecond()),
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"nfts": nfts, "links": map[string]any{"next": nil}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDailyTick_CountsDonorsOfTheClosedDay(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC))
	minted := []time.Time{
		time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC),
	}
	srv := donorMirror(t, clock, minted)

	src, err := collector.NewMirrorSource(collector.MirrorConfig{
		Logger:            testutil.NewLogger(),
		Clock:             clock,
		BaseURL:           srv.URL,
		MembershipTokenID: "0.0.100",
		DonorBadgeTokenID: "0.0.200",
		RequestsPerSecond: 1000,
		Retry:             retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
	require.NoError(t, err)
	mem := store.NewMemoryStore()
	o, err := oracle.New(oracle.Config{
		Logger:    testutil.NewLogger(),
		Clock:     clock,
		Params:    calculator.DefaultParams(),
		Source:    src,
		States:    mem,
		Snapshots: mem,
	})
	require.NoError(t, err)
	s := NewScheduler(context.Background(), testutil.NewLogger(), o, &fakeAlerter{})

	// the 00:05 tick on May 1st closes April 30th, before any badge exists
	res, err := s.RunNow()
	require.NoError(t, err)
	require.Equal(t, "2024-04-30", res.Snapshot.Date)
	require.Equal(t, int64(2), res.Snapshot.ActiveHolders)
	require.Equal(t, int64(0), res.Snapshot.NewDonors)

	// the next tick closes May 1st with all of its badges minted
	clock.Advance(24 * time.Hour)
	res, err = s.RunNow()
	require.NoError(t, err)
	require.Equal(t, oracle.StatusComputed, res.Status)
	require.Equal(t, "2024-05-01", res.Snapshot.Date)
	require.Equal(t, int64(3), res.Snapshot.NewDonors)
	require.Equal(t, int64(25), res.Snapshot.DonorBooster)
	require.Equal(t, int64(75), res.Snapshot.FinalEntitlement)
}
