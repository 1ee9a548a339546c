package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"FountainProtocol/internal/metrics"
	"FountainProtocol/internal/model"
	"FountainProtocol/internal/retry"
)

// MirrorConfig configures the mirror REST count source.
type MirrorConfig struct {
	Logger            *slog.Logger
	Clock             clockwork.Clock
	BaseURL           string
	MembershipTokenID string
	DonorBadgeTokenID string
	ExcludeAccounts   []string // treasury and operator accounts
	MinBalance        int64
	PageSize          int
	RequestsPerSecond float64
	Proxy             string
	Retry             retry.Config
}

func (cfg *MirrorConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		return errors.New("mirror base url is required")
	}
	if cfg.MembershipTokenID == "" {
		return errors.New("membership token id is required")
	}
	if cfg.DonorBadgeTokenID == "" {
		return errors.New("donor badge token id is required")
	}
	if cfg.MinBalance <= 0 {
		cfg.MinBalance = 1
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// MirrorSource counts membership holders and new donor badges through the mirror REST API.
type MirrorSource struct {
	cfg      MirrorConfig
	log      *slog.Logger
	client   *http.Client
	limiter  *rate.Limiter
	excluded map[string]struct{}
}

// NewMirrorSource creates a mirror source with optional proxy support.
func NewMirrorSource(cfg MirrorConfig) (*MirrorSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	excluded := make(map[string]struct{}, len(cfg.ExcludeAccounts))
	for _, a := range cfg.ExcludeAccounts {
		excluded[a] = struct{}{}
	}
	return &MirrorSource{
		cfg: cfg,
		log: cfg.Logger,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		excluded: excluded,
	}, nil
}

func (m *MirrorSource) Name() string { return "mirror" }

// FetchCounts queries holders and donors concurrently. Either failure fails the whole fetch.
func (m *MirrorSource) FetchCounts(ctx context.Context, date string) (model.Counts, error) {
	start, end, err := model.DayWindow(date)
	if err != nil {
		return model.Counts{}, err
	}

	var holders, donors int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := m.countHolders(gctx, start, end)
		if err != nil {
			return fmt.Errorf("count holders: %w", err)
		}
		holders = n
		return nil
	})
	g.Go(func() error {
		n, err := m.countNewDonors(gctx, start, end)
		if err != nil {
			return fmt.Errorf("count new donors: %w", err)
		}
		donors = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Counts{}, err
	}

	return model.Counts{
		ActiveHolders: holders,
		NewDonors:     donors,
		Source:        m.Name(),
		FetchedAt:     m.cfg.Clock.Now().UTC(),
	}, nil
}

type mirrorLinks struct {
	Next string `json:"next"`
}

type balancesPage struct {
	Balances []struct {
		Account string `json:"account"`
		Balance int64  `json:"balance"`
	} `json:"balances"`
	Links mirrorLinks `json:"links"`
}

type nftsPage struct {
	NFTs []struct {
		AccountID        string `json:"account_id"`
		SerialNumber     int64  `json:"serial_number"`
		CreatedTimestamp string `json:"created_timestamp"`
		Deleted          bool   `json:"deleted"`
	} `json:"nfts"`
	Links mirrorLinks `json:"links"`
}

// countHolders counts distinct accounts holding at least MinBalance membership tokens.
// For a day that has already ended the balance snapshot at the end of that day is used.
func (m *MirrorSource) countHolders(ctx context.Context, start, end time.Time) (int64, error) {
	q := url.Values{}
	q.Set("account.balance", fmt.Sprintf("gte:%d", m.cfg.MinBalance))
	q.Set("limit", strconv.Itoa(m.cfg.PageSize))
	if !end.After(m.cfg.Clock.Now()) {
		q.Set("timestamp", "lt:"+formatTimestamp(end))
	}
	next := fmt.Sprintf("/api/v1/tokens/%s/balances?%s", url.PathEscape(m.cfg.MembershipTokenID), q.Encode())

	seen := make(map[string]struct{})
	for next != "" {
		var page balancesPage
		if err := m.getJSON(ctx, "balances", next, &page); err != nil {
			return 0, err
		}
		for _, b := range page.Balances {
			if b.Balance < m.cfg.MinBalance {
				continue
			}
			if _, skip := m.excluded[b.Account]; skip {
				continue
			}
			seen[b.Account] = struct{}{}
		}
		next = page.Links.Next
	}
	return int64(len(seen)), nil
}

// countNewDonors counts distinct accounts holding a donor badge minted inside [start, end).
// NFTs are walked newest first so paging stops once the window has been passed.
func (m *MirrorSource) countNewDonors(ctx context.Context, start, end time.Time) (int64, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(m.cfg.PageSize))
	q.Set("order", "desc")
	next := fmt.Sprintf("/api/v1/tokens/%s/nfts?%s", url.PathEscape(m.cfg.DonorBadgeTokenID), q.Encode())

	seen := make(map[string]struct{})
	for next != "" {
		var page nftsPage
		if err := m.getJSON(ctx, "nfts", next, &page); err != nil {
			return 0, err
		}
		passed := false
		for _, nft := range page.NFTs {
			created, err := parseTimestamp(nft.CreatedTimestamp)
			if err != nil {
				return 0, fmt.Errorf("serial %d: %w", nft.SerialNumber, err)
			}
			if created.Before(start) {
				passed = true
				break
			}
			if !created.Before(end) || nft.Deleted || nft.AccountID == "" {
				continue
			}
			if _, skip := m.excluded[nft.AccountID]; skip {
				continue
			}
			seen[nft.AccountID] = struct{}{}
		}
		if passed {
			break
		}
		next = page.Links.Next
	}
	return int64(len(seen)), nil
}

// statusError carries the HTTP status so retry can classify it.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string   { return fmt.Sprintf("status %d, body: %s", e.code, e.body) }
func (e *statusError) StatusCode() int { return e.code }

func (m *MirrorSource) getJSON(ctx context.Context, endpoint, path string, out any) error {
	u := strings.TrimRight(m.cfg.BaseURL, "/") + path

	err := retry.Do(ctx, m.cfg.Retry, func() error {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := m.client.Do(req)
		if err != nil {
			return fmt.Errorf("mirror %s: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("mirror %s: %w", endpoint, &statusError{code: resp.StatusCode, body: string(body)})
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MirrorRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.log.Debug("mirror request", "endpoint", endpoint, "path", path, "status", status)
	return err
}

// parseTimestamp parses the mirror's "seconds.nanoseconds" timestamps.
func parseTimestamp(s string) (time.Time, error) {
	secStr, nanoStr, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	var nanos int64
	if nanoStr != "" {
		nanoStr = (nanoStr + "000000000")[:9]
		if nanos, err = strconv.ParseInt(nanoStr, 10, 64); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
	}
	return time.Unix(sec, nanos).UTC(), nil
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%09d", t.Unix(), t.Nanosecond())
}
