package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"voicechat-platform/internal/config"
	"voicechat-platform/pkg/logger"
)

var (
	// ErrBadCredentials means the agent service rejected our API key (401/403).
	ErrBadCredentials = errors.New("voice: bad credentials")

	// ErrAgentNotFound means the configured agent id does not exist (404).
	ErrAgentNotFound = errors.New("voice: agent not found")

	// ErrServiceUnavailable covers transport failures and 5xx responses that
	// survived the retry budget.
	ErrServiceUnavailable = errors.New("voice: service unavailable")
)

// CallContext carries the per-user conversation context sent to the agent
// when a call is created.
type CallContext struct {
	UserID          string
	FirstName       string
	LastCallSummary string
	CurrentTime     string
	UserLocation    string
	TotalCalls      int64
	Persona         string
	BalanceSeconds  int64
}

// CreatedCall is the provisioned remote call.
type CreatedCall struct {
	CallID  string
	JoinURL string
}

// CallService provisions remote calls.
type CallService interface {
	CreateCall(ctx context.Context, cc CallContext) (CreatedCall, error)
}

// Client talks to the voice-agent service over HTTPS.
type Client struct {
	baseURL string
	apiKey  string
	agentID string

	httpc *http.Client
	sleep func(time.Duration)
}

func NewClient(cfg config.VoiceConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		agentID: cfg.AgentID,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		sleep:   time.Sleep,
	}
}

const (
	maxAttempts  = 3
	retryBackoff = time.Second
)

// MaxDurationSeconds caps the call at the remaining balance plus grace,
// never below one minute so a freshly-topped-up call can establish.
func MaxDurationSeconds(balanceSeconds int64) int64 {
	d := balanceSeconds + 30
	if d < 60 {
		d = 60
	}
	return d
}

type createCallRequest struct {
	AgentID            string            `json:"agent_id"`
	MaxDurationSeconds int64             `json:"max_duration_seconds"`
	DynamicVariables   map[string]string `json:"dynamic_variables"`
}

type createCallResponse struct {
	CallID  string `json:"call_id"`
	JoinURL string `json:"join_url"`
}

// CreateCall provisions a call with the agent service. Transport errors and
// 5xx responses are retried with exponential backoff; 4xx responses are
// terminal and classified.
func (c *Client) CreateCall(ctx context.Context, cc CallContext) (CreatedCall, error) {
	body, err := json.Marshal(createCallRequest{
		AgentID:            c.agentID,
		MaxDurationSeconds: MaxDurationSeconds(cc.BalanceSeconds),
		DynamicVariables: map[string]string{
			"user_name":         cc.FirstName,
			"last_conversation": cc.LastCallSummary,
			"current_time":      cc.CurrentTime,
			"user_location":     cc.UserLocation,
			"total_calls":       fmt.Sprintf("%d", cc.TotalCalls),
			"persona":           cc.Persona,
			"balance_display":   fmt.Sprintf("%d", cc.BalanceSeconds),
		},
	})
	if err != nil {
		return CreatedCall{}, fmt.Errorf("voice: encode create call: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// 1s, 2s between attempts.
			c.sleep(retryBackoff << (attempt - 2))
			if err := ctx.Err(); err != nil {
				return CreatedCall{}, err
			}
		}

		created, retryable, err := c.attemptCreate(ctx, body)
		if err == nil {
			return created, nil
		}
		if !retryable {
			return CreatedCall{}, err
		}
		lastErr = err
		logger.From(ctx).Warn("call creation attempt failed",
			"attempt", attempt,
			"err", err,
		)
	}
	return CreatedCall{}, lastErr
}

func (c *Client) attemptCreate(ctx context.Context, body []byte) (CreatedCall, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/calls", bytes.NewReader(body))
	if err != nil {
		return CreatedCall{}, false, fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return CreatedCall{}, true, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var out createCallResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return CreatedCall{}, false, fmt.Errorf("voice: decode create call response: %w", err)
		}
		if out.JoinURL == "" {
			return CreatedCall{}, false, errors.New("voice: create call response missing join_url")
		}
		if out.CallID == "" {
			out.CallID = CallIDFromJoinURL(out.JoinURL)
		}
		return CreatedCall{CallID: out.CallID, JoinURL: out.JoinURL}, false, nil

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return CreatedCall{}, false, fmt.Errorf("%w (status %d)", ErrBadCredentials, resp.StatusCode)

	case resp.StatusCode == http.StatusNotFound:
		return CreatedCall{}, false, fmt.Errorf("%w (status %d)", ErrAgentNotFound, resp.StatusCode)

	case resp.StatusCode >= 500:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return CreatedCall{}, true, fmt.Errorf("%w (status %d)", ErrServiceUnavailable, resp.StatusCode)

	default:
		return CreatedCall{}, false, fmt.Errorf("voice: create call failed with status %d", resp.StatusCode)
	}
}

// CallIDFromJoinURL extracts the call identity the join handle encodes.
// A fresh uuid is used when the handle does not carry one, so downstream
// transcript keys are always present.
func CallIDFromJoinURL(joinURL string) string {
	if u, err := url.Parse(joinURL); err == nil {
		if id := u.Query().Get("call_id"); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
