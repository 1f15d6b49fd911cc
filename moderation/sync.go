package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"adscan/models"
)

// ServiceError is an explicit per-item rejection reported by the remote
// service. It is recorded against the item and does not count as the channel
// being down.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("moderation service rejected item (status %d): %s", e.Status, e.Message)
}

// syncChannel is the fallback moderation channel: one blocking POST with a
// bounded timeout, verdict in the response body.
type syncChannel struct {
	moderateURL string
	client      *http.Client
	videoClient *http.Client
}

func newSyncChannel(baseURL string, timeout, videoTimeout time.Duration) *syncChannel {
	return &syncChannel{
		moderateURL: baseURL + "/api/v1/moderate",
		client: &http.Client{
			Timeout: timeout,
		},
		// Video payloads take the service much longer to classify.
		videoClient: &http.Client{
			Timeout: videoTimeout,
		},
	}
}

// Moderate issues one synchronous moderation request. No retries: a failure
// here surfaces to the caller as the channel being unusable.
func (s *syncChannel) Moderate(ctx context.Context, request *models.ModerationRequest) (*models.ModerationVerdict, error) {
	start := time.Now()

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal moderation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.moderateURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.client
	if request.HasVideo() {
		client = s.videoClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The service understood the request and rejected this item.
		return nil, &ServiceError{Status: resp.StatusCode, Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("moderation API returned status %d: %s", resp.StatusCode, string(body))
	}

	var wire wireVerdict
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode verdict: %w", err)
	}
	return wire.toVerdict(time.Since(start))
}
