package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"adscan/models"
)

// streamChannel is the primary moderation channel: one websocket session per
// call, one request frame out, progress frames in, one terminal frame.
type streamChannel struct {
	wsURL       string
	healthURL   string
	dialer      *websocket.Dialer
	probeClient *http.Client
	readTimeout time.Duration
}

func newStreamChannel(wsURL, baseURL string, probeTimeout, readTimeout time.Duration) *streamChannel {
	return &streamChannel{
		wsURL:     wsURL,
		healthURL: baseURL + "/health",
		dialer: &websocket.Dialer{
			HandshakeTimeout: probeTimeout,
		},
		probeClient: &http.Client{
			Timeout: probeTimeout,
		},
		readTimeout: readTimeout,
	}
}

// Available probes the moderation service health endpoint. A cheap check so
// an offline service does not cost a websocket handshake per ad.
func (s *streamChannel) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.healthURL, nil)
	if err != nil {
		return false
	}

	resp, err := s.probeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// Moderate runs one streaming session. Progress frames are forwarded to
// onProgress; the verdict comes only from the terminal frame.
func (s *streamChannel) Moderate(ctx context.Context, request *models.ModerationRequest, onProgress ProgressFunc) (*models.ModerationVerdict, error) {
	start := time.Now()

	conn, resp, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial streaming channel: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteJSON(request); err != nil {
		return nil, fmt.Errorf("failed to send request frame: %w", err)
	}

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}

		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return nil, fmt.Errorf("failed to read frame: %w", err)
		}

		switch {
		case frame.Partial:
			if onProgress != nil && len(frame.Data) > 0 {
				var status map[string]interface{}
				if err := json.Unmarshal(frame.Data, &status); err == nil {
					onProgress(status)
				}
			}

		case frame.Final:
			return decodeTerminal(frame.Data, start)

		case frame.Cached:
			return decodeTerminal(frame.Result, start)

		default:
			return nil, fmt.Errorf("malformed frame: neither partial, final nor cached")
		}
	}
}

func decodeTerminal(raw json.RawMessage, start time.Time) (*models.ModerationVerdict, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("terminal frame carries no verdict")
	}
	var wire wireVerdict
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode terminal verdict: %w", err)
	}
	return wire.toVerdict(time.Since(start))
}
