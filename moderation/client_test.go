package moderation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"adscan/config"
	"adscan/models"
)

var upgrader = websocket.Upgrader{}

type moderationServer struct {
	healthStatus int
	syncStatus   int
	syncBody     string
	frames       []string
}

func (m *moderationServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(m.healthStatus)
	})
	mux.HandleFunc("/api/v1/moderate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(m.syncStatus)
		w.Write([]byte(m.syncBody))
	})
	mux.HandleFunc("/ws/moderate", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Consume the single request frame.
		var req models.ModerationRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		for _, f := range m.frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
	})
	return mux
}

func testClient(t *testing.T, m *moderationServer) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(m.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ModerationBaseURL: srv.URL,
		ModerationWSURL:   "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/moderate",
		SyncTimeout:       2 * time.Second,
		VideoSyncTimeout:  2 * time.Second,
		ProbeTimeout:      1 * time.Second,
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: unexpected error: %v", err)
	}
	return client, srv
}

func TestNewClientRejectsInvalidURLs(t *testing.T) {
	testCases := []struct {
		name string
		base string
		ws   string
	}{
		{
			name: "base url without scheme",
			base: "localhost:8090",
			ws:   "ws://localhost:8090/ws/moderate",
		},
		{
			name: "websocket url with http scheme",
			base: "http://localhost:8090",
			ws:   "http://localhost:8090/ws/moderate",
		},
		{
			name: "empty base url",
			base: "",
			ws:   "ws://localhost:8090/ws/moderate",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &config.Config{ModerationBaseURL: tc.base, ModerationWSURL: tc.ws}
			if _, err := NewClient(cfg); err == nil {
				t.Errorf("NewClient: expected an error for base=%q ws=%q", tc.base, tc.ws)
			}
		})
	}
}

func testRequest() *models.ModerationRequest {
	return &models.ModerationRequest{
		Title:       "Vintage bicycle",
		Description: "A well kept city bike",
		Category:    "sports",
		Language:    "en",
		Context:     models.RequestContext{AdID: 11, Source: "adscan"},
	}
}

func TestModerateStreaming(t *testing.T) {
	client, _ := testClient(t, &moderationServer{
		healthStatus: http.StatusOK,
		frames: []string{
			`{"partial":true,"data":{"stage":"text"}}`,
			`{"partial":true,"data":{"stage":"media"}}`,
			`{"final":true,"data":{"decision":"approve","global_score":0.91,"audit_id":"a-1"}}`,
		},
	})

	var progress []map[string]interface{}
	verdict, err := client.Moderate(context.Background(), testRequest(), func(status map[string]interface{}) {
		progress = append(progress, status)
	})
	if err != nil {
		t.Fatalf("Moderate: unexpected error: %v", err)
	}
	if !verdict.Safe || verdict.Score != 91 {
		t.Errorf("Moderate: verdict = safe:%v score:%d, want safe:true score:91", verdict.Safe, verdict.Score)
	}
	if verdict.AuditID != "a-1" {
		t.Errorf("Moderate: audit id = %q, want a-1", verdict.AuditID)
	}
	if len(progress) != 2 {
		t.Errorf("Moderate: got %d progress callbacks, want 2", len(progress))
	}
}

func TestModerateStreamingCachedFrame(t *testing.T) {
	client, _ := testClient(t, &moderationServer{
		healthStatus: http.StatusOK,
		frames: []string{
			`{"cached":true,"result":{"decision":"block","risk_level":"high","global_score":0.2,"reasons":["weapon listing"]}}`,
		},
	})

	verdict, err := client.Moderate(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Moderate: unexpected error: %v", err)
	}
	if verdict.Safe {
		t.Error("Moderate: blocked verdict reported safe")
	}
	if verdict.RiskLevel != models.RiskHigh {
		t.Errorf("Moderate: risk level = %q, want high", verdict.RiskLevel)
	}
	if len(verdict.Issues) != 1 {
		t.Errorf("Moderate: issues = %v, want the block reason", verdict.Issues)
	}
}

func TestModerateFallsBackWhenProbeFails(t *testing.T) {
	client, _ := testClient(t, &moderationServer{
		healthStatus: http.StatusServiceUnavailable,
		syncStatus:   http.StatusOK,
		syncBody:     `{"decision":"review","global_score":0.55,"reasons":["needs a closer look"]}`,
	})

	verdict, err := client.Moderate(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Moderate: unexpected error: %v", err)
	}
	if verdict.Safe {
		t.Error("Moderate: review verdict reported safe")
	}
	if len(verdict.Warnings) != 1 {
		t.Errorf("Moderate: warnings = %v, want the review reason", verdict.Warnings)
	}
}

func TestModerateFallsBackOnMalformedFrame(t *testing.T) {
	client, _ := testClient(t, &moderationServer{
		healthStatus: http.StatusOK,
		frames:       []string{`{"data":{"stage":"orphan"}}`},
		syncStatus:   http.StatusOK,
		syncBody:     `{"decision":"approve","global_score":0.95}`,
	})

	verdict, err := client.Moderate(context.Background(), testRequest(), nil)
	if err != nil {
		t.Fatalf("Moderate: unexpected error: %v", err)
	}
	if !verdict.Safe || verdict.Score != 95 {
		t.Errorf("Moderate: verdict = safe:%v score:%d, want the sync verdict", verdict.Safe, verdict.Score)
	}
}

func TestModerateBothChannelsDown(t *testing.T) {
	client, _ := testClient(t, &moderationServer{
		healthStatus: http.StatusServiceUnavailable,
		syncStatus:   http.StatusInternalServerError,
		syncBody:     `boom`,
	})

	_, err := client.Moderate(context.Background(), testRequest(), nil)
	if err == nil {
		t.Fatal("Moderate: expected an error with both channels down")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Moderate: error = %v, want ErrUnavailable", err)
	}
}

func TestLocalClassifier(t *testing.T) {
	local := NewLocalClassifier()

	testCases := []struct {
		name      string
		title     string
		desc      string
		wantSafe  bool
		wantFlag  string
		wantWarns int
	}{
		{
			name:     "clean ad",
			title:    "Garden chairs",
			desc:     "Four wooden chairs in good condition",
			wantSafe: true,
		},
		{
			name:     "weapons keyword",
			title:    "Hunting rifle for sale",
			desc:     "Barely used",
			wantSafe: false,
			wantFlag: "weapons",
		},
		{
			name:      "scammy wording",
			title:     "Miracle supplement",
			desc:      "Guaranteed results",
			wantSafe:  true,
			wantWarns: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verdict := local.Classify(&models.ModerationRequest{Title: tc.title, Description: tc.desc})
			if verdict.Safe != tc.wantSafe {
				t.Errorf("Classify: safe = %v, want %v", verdict.Safe, tc.wantSafe)
			}
			if tc.wantFlag != "" {
				found := false
				for _, f := range verdict.Flags {
					if f == tc.wantFlag {
						found = true
					}
				}
				if !found {
					t.Errorf("Classify: flags = %v, want %q present", verdict.Flags, tc.wantFlag)
				}
			}
			if len(verdict.Warnings) != tc.wantWarns {
				t.Errorf("Classify: warnings = %v, want %d", verdict.Warnings, tc.wantWarns)
			}
			if verdict.RiskLevel != "" {
				t.Errorf("Classify: local fallback must not set a risk level, got %q", verdict.RiskLevel)
			}
			if !strings.HasPrefix(verdict.AuditID, "local-") {
				t.Errorf("Classify: audit id = %q, want local- prefix", verdict.AuditID)
			}
		})
	}
}

func TestLocalClassifierDeterministicFlags(t *testing.T) {
	local := NewLocalClassifier()
	req := &models.ModerationRequest{Title: "stolen rifle and cocaine", Description: "kill"}

	first := local.Classify(req)
	for i := 0; i < 20; i++ {
		next := local.Classify(req)
		if len(next.Flags) != len(first.Flags) {
			t.Fatalf("Classify: flag count changed between runs: %v vs %v", first.Flags, next.Flags)
		}
		for j := range next.Flags {
			if next.Flags[j] != first.Flags[j] {
				t.Fatalf("Classify: flag order changed between runs: %v vs %v", first.Flags, next.Flags)
			}
		}
	}
}
