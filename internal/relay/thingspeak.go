package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/logic"
)

// ErrRateLimited is returned (wrapped) when a push is skipped locally because
// the channel's minimum update interval has not passed.
var ErrRateLimited = errors.New("relay: update interval not elapsed")

// ThingSpeakPublisher pushes snapshots with an HTTP GET update.
type ThingSpeakPublisher struct {
	endpoint string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// ThingSpeakConfig configures the publisher.
type ThingSpeakConfig struct {
	URL         string
	APIKey      string
	MinInterval time.Duration // 0 disables local rate limiting
	Client      *http.Client
	Logger      *slog.Logger
}

// NewThingSpeakPublisher creates a publisher.
func NewThingSpeakPublisher(cfg ThingSpeakConfig) *ThingSpeakPublisher {
	endpoint := cfg.URL
	if endpoint == "" {
		endpoint = DefaultURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	return &ThingSpeakPublisher{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.With("component", "relay"),
	}
}

// Publish sends the snapshot. ThingSpeak answers 200 with the new entry id,
// or "0" when it refused the update.
func (p *ThingSpeakPublisher) Publish(ctx context.Context, snap logic.Snapshot) error {
	if !p.limiter.Allow() {
		p.logger.Debug("skipping relay push inside update interval")
		return &faults.TransportError{Op: "relay publish", Err: ErrRateLimited}
	}

	q := FormatFields(snap)
	q.Set("api_key", p.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return &faults.TransportError{Op: "relay publish", Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return &faults.TransportError{Op: "relay publish", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return &faults.TransportError{Op: "relay publish", Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &faults.TransportError{Op: "relay publish", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	entry := strings.TrimSpace(string(body))
	if entry == "0" || entry == "" {
		return &faults.TransportError{Op: "relay publish", Err: errors.New("update rejected")}
	}

	p.logger.Debug("relay updated",
		"entry", entry,
		"temp", snap.Temperature,
		"light", snap.Light.String(),
		"fan", snap.Fan.String(),
	)
	return nil
}
