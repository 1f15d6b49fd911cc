package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/apex/log"

	"adscan/config"
	"adscan/metrics"
	"adscan/models"
)

// ErrUnavailable is returned when both transport channels failed for one
// call. Callers apply the local fallback classifier and mark the run degraded.
var ErrUnavailable = errors.New("moderation service unavailable")

// Client is the dual-channel moderation transport: streaming primary,
// synchronous fallback, exactly one fallback step and no retries.
type Client struct {
	stream *streamChannel
	sync   *syncChannel
}

// NewClient wires both channels from configuration. An invalid endpoint URL is
// a configuration error and must abort startup, not surface per item.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := validateURL(cfg.ModerationBaseURL, "http", "https"); err != nil {
		return nil, fmt.Errorf("invalid moderation base URL: %w", err)
	}
	if err := validateURL(cfg.ModerationWSURL, "ws", "wss"); err != nil {
		return nil, fmt.Errorf("invalid moderation websocket URL: %w", err)
	}

	return &Client{
		stream: newStreamChannel(cfg.ModerationWSURL, cfg.ModerationBaseURL, cfg.ProbeTimeout, cfg.SyncTimeout),
		sync:   newSyncChannel(cfg.ModerationBaseURL, cfg.SyncTimeout, cfg.VideoSyncTimeout),
	}, nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", raw, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%q has scheme %q, want one of %v", raw, u.Scheme, schemes)
}

// Moderate classifies one ad. The streaming channel is tried first when its
// health probe passes; any streaming failure falls through to the synchronous
// channel exactly once. When both channels fail the error wraps
// ErrUnavailable instead of the raw transport error.
func (c *Client) Moderate(ctx context.Context, request *models.ModerationRequest, onProgress ProgressFunc) (*models.ModerationVerdict, error) {
	if c.stream.Available(ctx) {
		verdict, err := c.stream.Moderate(ctx, request, onProgress)
		if err == nil {
			metrics.AdsScannedTotal.WithLabelValues("stream").Inc()
			return verdict, nil
		}
		log.WithError(err).Warnf("Streaming moderation failed for ad %d, falling back to sync channel", request.Context.AdID)
	}
	metrics.TransportFallbackTotal.Inc()

	verdict, err := c.sync.Moderate(ctx, request)
	if err != nil {
		var svcErr *ServiceError
		if errors.As(err, &svcErr) {
			// Per-item rejection, not a channel failure.
			return nil, err
		}
		log.WithError(err).Errorf("Sync moderation failed for ad %d", request.Context.AdID)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.AdsScannedTotal.WithLabelValues("sync").Inc()
	return verdict, nil
}
