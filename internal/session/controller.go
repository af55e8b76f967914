package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"voicechat-platform/internal/callstats"
	"voicechat-platform/internal/geo"
	"voicechat-platform/internal/prefs"
	"voicechat-platform/internal/transcripts"
	"voicechat-platform/internal/voice"
	"voicechat-platform/internal/wallet"
	"voicechat-platform/pkg/logger"
)

var (
	// ErrInsufficientBalance rejects a call before any remote work happens.
	ErrInsufficientBalance = errors.New("session: insufficient balance")

	// ErrNoActiveSession means the user has nothing to hang up or inspect.
	ErrNoActiveSession = errors.New("session: no active session")
)

// Deps are the collaborators one session controller needs.
type Deps struct {
	Wallet      *wallet.Service
	Stats       *callstats.Service
	Calls       voice.CallService
	Profiles    *prefs.Service
	Transcripts *transcripts.Service
	Geo         *geo.Service

	NewLiveSession func() voice.LiveSession

	// ConnectTimeout bounds how long a call may sit in connecting before it
	// is torn down.
	ConnectTimeout time.Duration

	// MinBalanceSeconds is the wallet floor required to start a call.
	MinBalanceSeconds int64

	Clock func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.NewLiveSession == nil {
		d.NewLiveSession = func() voice.LiveSession { return voice.NewWSSession() }
	}
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = 15 * time.Second
	}
	if d.MinBalanceSeconds <= 0 {
		d.MinBalanceSeconds = 30
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// StartParams is the per-request input to starting a call. Coordinates are
// optional; absent coordinates skip location detection.
type StartParams struct {
	Latitude  *float64
	Longitude *float64
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	Status      Status              `json:"status"`
	CallID      string              `json:"call_id,omitempty"`
	Transcripts []transcripts.Entry `json:"transcripts"`
}

// Controller drives exactly one call from start to settlement. All lifecycle
// fields are instance state, created fresh per call and reset on termination.
//
// Every mutation after Start happens in the reducer goroutine, which consumes
// live-session events, the connect timer, and hangup requests from one select
// loop. Settlement therefore cannot race with itself: the debited flag is
// checked, set, and (on store failure) cleared within that single goroutine.
type Controller struct {
	deps   Deps
	userID string

	mu         sync.Mutex
	status     Status
	callID     string
	startTime  time.Time
	lastActive bool
	debited    bool

	rec     *transcripts.Recorder
	live    voice.LiveSession
	timer   *time.Timer
	hangupC chan struct{}
	done    chan struct{}

	// onTerminated runs exactly once after the session is fully reset.
	onTerminated func()
}

func newController(deps Deps, userID string) *Controller {
	deps = deps.withDefaults()
	return &Controller{
		deps:    deps,
		userID:  userID,
		status:  StatusDisconnected,
		rec:     transcripts.NewRecorder(deps.Transcripts, userID),
		hangupC: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start performs the call-start sequence:
// balance gate, stats bump, context assembly, connect timer, remote call
// creation, join, then the reducer goroutine. The balance gate runs before
// any remote request so a broke user costs nothing.
func (c *Controller) Start(ctx context.Context, p StartParams) (string, error) {
	balance := c.deps.Wallet.GetBalance(ctx, c.userID)
	if balance < c.deps.MinBalanceSeconds {
		return "", ErrInsufficientBalance
	}

	// The billable window opens at the request instant, not at connect.
	now := c.deps.Clock()
	c.mu.Lock()
	c.status = StatusConnecting
	c.startTime = now
	c.mu.Unlock()

	total, err := c.deps.Stats.Increment(ctx, c.userID)
	if err != nil {
		logger.From(ctx).Warn("call stats increment failed", "user_id", c.userID, "err", err)
	}

	cc := c.buildContext(ctx, p, now, total, balance)

	c.timer = time.NewTimer(c.deps.ConnectTimeout)

	created, err := c.deps.Calls.CreateCall(ctx, cc)
	if err != nil {
		c.abort()
		return "", fmt.Errorf("session: create call: %w", err)
	}

	callID := created.CallID
	if callID == "" {
		callID = voice.CallIDFromJoinURL(created.JoinURL)
	}
	c.mu.Lock()
	c.callID = callID
	c.mu.Unlock()
	c.rec.SetCall(callID)

	live := c.deps.NewLiveSession()
	if err := live.JoinCall(ctx, created.JoinURL); err != nil {
		c.abort()
		return "", fmt.Errorf("session: join call: %w", err)
	}
	c.live = live

	go c.run()
	return callID, nil
}

// HangUp requests manual termination and waits for the reducer to finish
// resetting. The call is billed only if it ever reached an active status.
// Safe after the session already terminated.
func (c *Controller) HangUp(ctx context.Context) error {
	select {
	case c.hangupC <- struct{}{}:
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	status := c.status
	callID := c.callID
	c.mu.Unlock()
	return Snapshot{
		Status:      status,
		CallID:      callID,
		Transcripts: c.rec.Entries(),
	}
}

// run is the reducer. All termination paths converge on settle + finalize.
func (c *Controller) run() {
	ctx := context.Background()
	defer c.finalize(ctx)

	for {
		select {
		case ev, ok := <-c.live.Events():
			if !ok {
				c.settle(ctx, "event stream closed")
				return
			}
			if terminate := c.handleEvent(ctx, ev); terminate {
				return
			}

		case <-c.timer.C:
			c.mu.Lock()
			active := c.lastActive
			c.mu.Unlock()
			if active {
				// Fired in the same select round the connect landed; stale.
				continue
			}
			logger.From(ctx).Warn("call never connected", "user_id", c.userID, "call_id", c.currentCallID())
			c.settle(ctx, "connect timeout")
			return

		case <-c.hangupC:
			c.mu.Lock()
			active := c.lastActive
			c.mu.Unlock()
			// Settle-if-active: abandoning the handshake costs nothing.
			if active {
				c.settle(ctx, "manual hangup")
			}
			return
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev voice.Event) bool {
	switch ev.Kind {
	case voice.EventStatus:
		st, ok := ParseStatus(ev.Status)
		if !ok {
			return false
		}
		return c.applyStatus(ctx, st)

	case voice.EventTranscript:
		entries := make([]transcripts.Entry, 0, len(ev.Entries))
		for _, e := range ev.Entries {
			entries = append(entries, transcripts.Entry{Speaker: e.Speaker, Text: e.Text})
		}
		c.rec.Update(ctx, entries)
		return false

	case voice.EventError:
		logger.From(ctx).Error("live session error", "user_id", c.userID, "call_id", c.currentCallID(), "err", ev.Err)
		c.settle(ctx, "session error")
		return true

	case voice.EventEnd:
		c.settle(ctx, "remote end")
		return true

	default:
		return false
	}
}

func (c *Controller) applyStatus(ctx context.Context, st Status) bool {
	c.mu.Lock()
	c.status = st
	wasActive := c.lastActive
	if st.Active() {
		c.lastActive = true
		// Cancel the connect timer the moment the call is established.
		// Stop runs in the reducer goroutine, so firing and cancellation
		// cannot interleave.
		c.timer.Stop()
	}
	c.mu.Unlock()

	if st != StatusDisconnected {
		return false
	}
	if wasActive {
		c.settle(ctx, "status drop")
	}
	// A connecting->disconnected drop is a failed setup, never billed.
	return true
}

// settle debits the wallet for the elapsed call time, exactly once per call.
// No-op when already debited, when there is no user, or when the billable
// window never opened. On a store failure the flag is cleared so a later
// termination path can retry; the reducer serializes those paths.
func (c *Controller) settle(ctx context.Context, reason string) {
	c.mu.Lock()
	if c.debited || c.userID == "" || c.startTime.IsZero() {
		c.mu.Unlock()
		return
	}
	start := c.startTime
	callID := c.callID
	c.debited = true
	c.mu.Unlock()

	elapsed := int64(c.deps.Clock().Sub(start) / time.Second)
	if elapsed <= 0 {
		logger.From(ctx).Info("call settled with no billable time",
			"user_id", c.userID, "call_id", callID, "reason", reason)
		return
	}

	if _, err := c.deps.Wallet.Debit(ctx, c.userID, elapsed); err != nil {
		logger.From(ctx).Error("call debit failed",
			"user_id", c.userID, "call_id", callID, "seconds", elapsed, "reason", reason, "err", err)
		c.mu.Lock()
		c.debited = false
		c.mu.Unlock()
		return
	}
	logger.From(ctx).Info("call settled",
		"user_id", c.userID, "call_id", callID, "seconds", elapsed, "reason", reason)
}

// finalize tears the session down and resets all lifecycle state. It must
// never be skipped: settlement failures do not block the reset.
func (c *Controller) finalize(ctx context.Context) {
	c.timer.Stop()
	if c.live != nil {
		c.live.LeaveCall()
	}
	c.rec.Flush(ctx)

	c.mu.Lock()
	c.status = StatusDisconnected
	c.callID = ""
	c.startTime = time.Time{}
	c.lastActive = false
	c.mu.Unlock()

	if c.onTerminated != nil {
		c.onTerminated()
	}
	close(c.done)
}

// abort unwinds a failed Start before the reducer ever ran.
func (c *Controller) abort() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Lock()
	c.status = StatusDisconnected
	c.callID = ""
	c.startTime = time.Time{}
	c.mu.Unlock()
	close(c.done)
}

func (c *Controller) currentCallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

func (c *Controller) buildContext(ctx context.Context, p StartParams, now time.Time, totalCalls, balance int64) voice.CallContext {
	profile, err := c.deps.Profiles.Get(ctx, c.userID)
	if err != nil {
		logger.From(ctx).Warn("profile lookup failed", "user_id", c.userID, "err", err)
		profile = prefs.Profile{UserID: c.userID, Persona: prefs.DefaultPersona}
	}

	location := geo.FallbackLocation
	if c.deps.Geo != nil && p.Latitude != nil && p.Longitude != nil {
		location = c.deps.Geo.Lookup(ctx, *p.Latitude, *p.Longitude)
	}

	return voice.CallContext{
		UserID:          c.userID,
		FirstName:       profile.FirstName,
		Persona:         profile.Persona,
		LastCallSummary: c.deps.Transcripts.LatestSummary(ctx, c.userID),
		CurrentTime:     now.Format("Monday, January 2, 2006 at 3:04 PM"),
		UserLocation:    location,
		TotalCalls:      totalCalls,
		BalanceSeconds:  balance,
	}
}
