package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voicechat-platform/internal/auth"
	"voicechat-platform/internal/callstats"
	"voicechat-platform/internal/config"
	"voicechat-platform/internal/prefs"
	"voicechat-platform/internal/session"
	"voicechat-platform/internal/transcripts"
	"voicechat-platform/internal/voice"
	"voicechat-platform/internal/wallet"
)

type allowGuard struct{}

func (allowGuard) Acquire(ctx context.Context, userID string) (bool, error) { return true, nil }

func (allowGuard) Release(ctx context.Context, userID string) error { return nil }

type stubCalls struct {
	mu  sync.Mutex
	err error
}

func (s *stubCalls) CreateCall(ctx context.Context, cc voice.CallContext) (voice.CreatedCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return voice.CreatedCall{}, s.err
	}
	return voice.CreatedCall{CallID: "c1", JoinURL: "wss://media.example.com/join?call_id=c1"}, nil
}

type stubLive struct {
	events chan voice.Event
	once   sync.Once
}

func newStubLive() *stubLive {
	return &stubLive{events: make(chan voice.Event, 4)}
}

func (s *stubLive) JoinCall(ctx context.Context, joinURL string) error { return nil }

func (s *stubLive) LeaveCall() { s.once.Do(func() { close(s.events) }) }

func (s *stubLive) Status() string { return "" }

func (s *stubLive) Transcripts() []voice.TranscriptEntry { return nil }

func (s *stubLive) Events() <-chan voice.Event { return s.events }

type testEnv struct {
	router      *gin.Engine
	wallet      *wallet.Service
	transcripts *transcripts.Service
	calls       *stubCalls
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	walletSvc := wallet.NewService(wallet.NewMemoryRepository())
	transcriptSvc := transcripts.NewService(transcripts.NewMemoryRepository())
	statsSvc := callstats.NewService(callstats.NewMemoryRepository())
	profileSvc := prefs.NewService(prefs.NewMemoryRepository())
	calls := &stubCalls{}

	registry := session.NewRegistry(session.Deps{
		Wallet:         walletSvc,
		Stats:          statsSvc,
		Calls:          calls,
		Profiles:       profileSvc,
		Transcripts:    transcriptSvc,
		NewLiveSession: func() voice.LiveSession { return newStubLive() },
	}, allowGuard{})

	h := NewHandlers(Deps{
		Auth:        mgr,
		Wallet:      walletSvc,
		Sessions:    registry,
		Transcripts: transcriptSvc,
		Stats:       statsSvc,
		Profiles:    profileSvc,
	})

	r := gin.New()
	h.RegisterRoutes(r)
	return &testEnv{router: r, wallet: walletSvc, transcripts: transcriptSvc, calls: calls}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, userID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/login", "", `{"user_id":"`+userID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login response: %v", err)
	}
	return resp.AccessToken
}

func TestLogin_ProvisionsWalletAndIssuesTokens(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")

	w := e.do(t, http.MethodGet, "/v1/wallet/balance", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("balance status %d", w.Code)
	}
	var resp struct {
		BalanceSeconds int64  `json:"balance_seconds"`
		Formatted      string `json:"formatted"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.BalanceSeconds != 420 || resp.Formatted != "7:00" {
		t.Fatalf("unexpected balance response: %+v", resp)
	}
}

func TestAuth_MissingTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, http.MethodGet, "/v1/wallet/balance", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", w.Code)
	}
}

func TestWallet_TopUp(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")

	w := e.do(t, http.MethodPost, "/v1/wallet/topup", token, `{"minutes":2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("topup status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		BalanceSeconds int64 `json:"balance_seconds"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.BalanceSeconds != 540 {
		t.Fatalf("balance = %d, want 540", resp.BalanceSeconds)
	}

	if w := e.do(t, http.MethodPost, "/v1/wallet/topup", token, `{"minutes":-1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative topup status %d, want 400", w.Code)
	}
}

func TestCalls_StartConflictStateHangup(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")

	w := e.do(t, http.MethodPost, "/v1/calls/start", token, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("start status %d: %s", w.Code, w.Body.String())
	}
	var started struct {
		CallID string `json:"call_id"`
		Status string `json:"status"`
	}
	json.Unmarshal(w.Body.Bytes(), &started)
	if started.CallID != "c1" || started.Status != "connecting" {
		t.Fatalf("unexpected start response: %+v", started)
	}

	if w := e.do(t, http.MethodPost, "/v1/calls/start", token, ""); w.Code != http.StatusConflict {
		t.Fatalf("second start status %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodGet, "/v1/calls/state", token, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "connecting") {
		t.Fatalf("state: %d %s", w.Code, w.Body.String())
	}

	if w := e.do(t, http.MethodPost, "/v1/calls/hangup", token, ""); w.Code != http.StatusOK {
		t.Fatalf("hangup status %d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/v1/calls/hangup", token, ""); w.Code != http.StatusNotFound {
		t.Fatalf("second hangup status %d, want 404", w.Code)
	}
}

func TestCalls_StartErrorMapping(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")
	ctx := context.Background()

	// Drain below the 30s floor.
	if _, err := e.wallet.Debit(ctx, "u1", 400); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if w := e.do(t, http.MethodPost, "/v1/calls/start", token, ""); w.Code != http.StatusPaymentRequired {
		t.Fatalf("status %d, want 402", w.Code)
	}

	e.wallet.Credit(ctx, "u1", 10)
	e.calls.err = voice.ErrServiceUnavailable
	if w := e.do(t, http.MethodPost, "/v1/calls/start", token, ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", w.Code)
	}

	e.calls.err = voice.ErrBadCredentials
	if w := e.do(t, http.MethodPost, "/v1/calls/start", token, ""); w.Code != http.StatusBadGateway {
		t.Fatalf("status %d, want 502", w.Code)
	}
}

func TestCallTranscripts_OwnershipEnforced(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")
	ctx := context.Background()

	e.transcripts.Save(ctx, "u1", "c9", []transcripts.Entry{{Speaker: "agent", Text: "hi"}})
	e.transcripts.Save(ctx, "u2", "c10", []transcripts.Entry{{Speaker: "agent", Text: "yo"}})

	if w := e.do(t, http.MethodGet, "/v1/calls/c9/transcripts", token, ""); w.Code != http.StatusOK {
		t.Fatalf("own call status %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/v1/calls/c10/transcripts", token, ""); w.Code != http.StatusNotFound {
		t.Fatalf("foreign call status %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/v1/calls/ghost/transcripts", token, ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing call status %d, want 404", w.Code)
	}
}

func TestCallStats_CountsStartedCalls(t *testing.T) {
	e := newTestEnv(t)
	token := e.login(t, "u1")

	if w := e.do(t, http.MethodGet, "/v1/calls/stats", token, ""); !strings.Contains(w.Body.String(), `"total_calls":0`) {
		t.Fatalf("fresh user stats: %s", w.Body.String())
	}

	e.do(t, http.MethodPost, "/v1/calls/start", token, "")
	e.do(t, http.MethodPost, "/v1/calls/hangup", token, "")

	if w := e.do(t, http.MethodGet, "/v1/calls/stats", token, ""); !strings.Contains(w.Body.String(), `"total_calls":1`) {
		t.Fatalf("stats after call: %s", w.Body.String())
	}
}

func TestRefresh_RotatesTokens(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, http.MethodPost, "/v1/auth/login", "", `{"user_id":"u1"}`)
	var pair struct {
		RefreshToken string `json:"refresh_token"`
		AccessToken  string `json:"access_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &pair)

	w = e.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+pair.RefreshToken+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status %d: %s", w.Code, w.Body.String())
	}

	// An access token is not a refresh token.
	w = e.do(t, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+pair.AccessToken+`"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("access-as-refresh status %d, want 401", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	if w := e.do(t, http.MethodGet, "/healthz", "", ""); w.Code != http.StatusOK {
		t.Fatalf("healthz status %d", w.Code)
	}
}
