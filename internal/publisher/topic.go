package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"FountainProtocol/internal/calculator"
	"FountainProtocol/internal/model"
)

// MaxMessageSize is the largest single consensus message the gateway accepts unchunked.
const MaxMessageSize = 6 * 1024

// TopicConfig configures the consensus-topic gateway publisher.
type TopicConfig struct {
	BaseURL  string
	TopicID  string
	APIKey   string
	Protocol string
	Params   calculator.Params
	Proxy    string
	Clock    clockwork.Clock
}

func (cfg *TopicConfig) Validate() error {
	if cfg.BaseURL == "" {
		return errors.New("topic gateway base url is required")
	}
	if cfg.TopicID == "" {
		return errors.New("topic id is required")
	}
	if cfg.Protocol == "" {
		return errors.New("protocol name is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// TopicPublisher submits audit records to a consensus topic through an HTTP gateway.
type TopicPublisher struct {
	cfg    TopicConfig
	Client *http.Client
}

func NewTopicPublisher(cfg TopicConfig) (*TopicPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TopicPublisher{
		cfg: cfg,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}, nil
}

func (p *TopicPublisher) Name() string { return "topic" }

type submitResponse struct {
	TopicID        string `json:"topic_id"`
	SequenceNumber int64  `json:"sequence_number"`
	TransactionID  string `json:"transaction_id"`
}

func (p *TopicPublisher) Publish(ctx context.Context, snap *model.DailySnapshot) (*model.PublishReceipt, error) {
	record := NewRecord(p.cfg.Protocol, p.cfg.Params, snap)
	body, err := record.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	if len(body) > MaxMessageSize {
		return nil, fmt.Errorf("record is %d bytes, limit %d", len(body), MaxMessageSize)
	}

	endpoint := fmt.Sprintf("%s/api/v1/topics/%s/messages",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.TopicID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("topic gateway error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode submit response: %w", err)
	}
	topicID := out.TopicID
	if topicID == "" {
		topicID = p.cfg.TopicID
	}
	return &model.PublishReceipt{
		RecordID:       record.ID,
		Publisher:      p.Name(),
		TopicID:        topicID,
		SequenceNumber: out.SequenceNumber,
		TransactionID:  out.TransactionID,
		PublishedAt:    p.cfg.Clock.Now().UTC(),
	}, nil
}
