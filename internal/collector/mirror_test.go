package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FountainProtocol/internal/retry"
	"FountainProtocol/internal/testutil"
)

func ts(t time.Time) string { return formatTimestamp(t) }

type fakeMirror struct {
	t             *testing.T
	balanceFails  atomic.Int32
	lastTimestamp atomic.Value
	nftRequests   atomic.Int32
}

func (f *fakeMirror) handler() http.Handler {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tokens/0.0.100/balances", func(w http.ResponseWriter, r *http.Request) {
		if f.balanceFails.Load() > 0 {
			f.balanceFails.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f.lastTimestamp.Store(r.URL.Query().Get("timestamp"))
		assert.Equal(f.t, "gte:1", r.URL.Query().Get("account.balance"))
		var body map[string]any
		if r.URL.Query().Get("account.id") == "" {
			body = map[string]any{
				"balances": []map[string]any{
					{"account": "0.0.2", "balance": 1000}, // treasury
					{"account": "0.0.1001", "balance": 1},
					{"account": "0.0.1002", "balance": 3},
				},
				"links": map[string]any{"next": "/api/v1/tokens/0.0.100/balances?account.id=gt:0.0.1002&account.balance=gte:1"},
			}
		} else {
			body = map[string]any{
				"balances": []map[string]any{
					{"account": "0.0.1003", "balance": 1},
					{"account": "0.0.1004", "balance": 0},
				},
				"links": map[string]any{"next": nil},
			}
		}
		json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/api/v1/tokens/0.0.200/nfts", func(w http.ResponseWriter, r *http.Request) {
		f.nftRequests.Add(1)
		assert.Equal(f.t, "desc", r.URL.Query().Get("order"))
		var body map[string]any
		if r.URL.Query().Get("serialnumber") == "" {
			body = map[string]any{
				"nfts": []map[string]any{
					{"account_id": "0.0.1009", "serial_number": 9, "created_timestamp": ts(day.Add(26 * time.Hour))}, // next day
					{"account_id": "0.0.1001", "serial_number": 8, "created_timestamp": ts(day.Add(20 * time.Hour))},
					{"account_id": "0.0.1001", "serial_number": 7, "created_timestamp": ts(day.Add(19 * time.Hour))}, // same donor twice
					{"account_id": "0.0.1005", "serial_number": 6, "created_timestamp": ts(day.Add(3 * time.Hour))},
				},
				"links": map[string]any{"next": "/api/v1/tokens/0.0.200/nfts?order=desc&serialnumber=lt:6"},
			}
		} else {
			body = map[string]any{
				"nfts": []map[string]any{
					{"account_id": "0.0.1006", "serial_number": 5, "created_timestamp": ts(day)},
					{"account_id": "0.0.1007", "serial_number": 4, "created_timestamp": ts(day.Add(-time.Nanosecond))},
					{"account_id": "0.0.1008", "serial_number": 3, "created_timestamp": ts(day.Add(-time.Hour))},
				},
				"links": map[string]any{"next": "/api/v1/tokens/0.0.200/nfts?order=desc&serialnumber=lt:3"},
			}
		}
		json.NewEncoder(w).Encode(body)
	})
	return mux
}

func newTestMirror(t *testing.T, baseURL string, now time.Time) *MirrorSource {
	m, err := NewMirrorSource(MirrorConfig{
		Logger:            testutil.NewLogger(),
		Clock:             clockwork.NewFakeClockAt(now),
		BaseURL:           baseURL,
		MembershipTokenID: "0.0.100",
		DonorBadgeTokenID: "0.0.200",
		ExcludeAccounts:   []string{"0.0.2"},
		RequestsPerSecond: 1000,
		Retry:             retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond},
	})
	require.NoError(t, err)
	return m
}

func TestMirrorSource_FetchCounts(t *testing.T) {
	t.Parallel()
	fm := &fakeMirror{t: t}
	srv := httptest.NewServer(fm.handler())
	defer srv.Close()

	m := newTestMirror(t, srv.URL, time.Date(2024, 5, 3, 12, 0, 0, 0, time.UTC))
	counts, err := m.FetchCounts(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.ActiveHolders)
	require.Equal(t, int64(3), counts.NewDonors) // 1001, 1005, 1006
	require.Equal(t, "mirror", counts.Source)
	require.Equal(t, int32(2), fm.nftRequests.Load(), "paging stops once the window is passed")
	require.Equal(t, "lt:1714608000.000000000", fm.lastTimestamp.Load(), "past days use the end-of-day balance snapshot")
}

func TestMirrorSource_CurrentDayUsesLiveBalances(t *testing.T) {
	t.Parallel()
	fm := &fakeMirror{t: t}
	srv := httptest.NewServer(fm.handler())
	defer srv.Close()

	m := newTestMirror(t, srv.URL, time.Date(2024, 5, 1, 0, 5, 0, 0, time.UTC))
	_, err := m.FetchCounts(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, "", fm.lastTimestamp.Load())
}

func TestMirrorSource_RetriesTransientErrors(t *testing.T) {
	t.Parallel()
	fm := &fakeMirror{t: t}
	fm.balanceFails.Store(2)
	srv := httptest.NewServer(fm.handler())
	defer srv.Close()

	m := newTestMirror(t, srv.URL, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	counts, err := m.FetchCounts(context.Background(), "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, int64(3), counts.ActiveHolders)
}

func TestMirrorSource_FailsWhenEitherQueryFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/nfts") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"balances":[{"account":"0.0.5","balance":1}],"links":{"next":null}}`))
	}))
	defer srv.Close()

	m := newTestMirror(t, srv.URL, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC))
	_, err := m.FetchCounts(context.Background(), "2024-05-01")
	require.Error(t, err)
	require.Contains(t, err.Error(), "count new donors")
	require.Contains(t, err.Error(), "status 404")
}

func TestMirrorConfig_Validate(t *testing.T) {
	t.Parallel()
	cfg := MirrorConfig{}
	require.ErrorContains(t, cfg.Validate(), "logger is required")

	cfg = MirrorConfig{Logger: testutil.NewLogger(), BaseURL: "http://x", MembershipTokenID: "0.0.1"}
	require.ErrorContains(t, cfg.Validate(), "donor badge token id is required")

	cfg.DonorBadgeTokenID = "0.0.2"
	require.NoError(t, cfg.Validate())
	require.Equal(t, int64(1), cfg.MinBalance)
	require.Equal(t, 100, cfg.PageSize)
	require.NotNil(t, cfg.Clock)
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	got, err := parseTimestamp("1714521600.000000123")
	require.NoError(t, err)
	require.True(t, time.Date(2024, 5, 1, 0, 0, 0, 123, time.UTC).Equal(got))

	got, err = parseTimestamp("1714521600.5")
	require.NoError(t, err)
	require.Equal(t, 500*time.Millisecond, got.Sub(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	_, err = parseTimestamp("abc")
	require.Error(t, err)
}
