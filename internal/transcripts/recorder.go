package transcripts

import (
	"context"
	"sync"

	"voicechat-platform/pkg/logger"
)

// Recorder buffers the latest full transcript list for one active call and
// persists a snapshot on every update batch.
//
// The call id may be assigned after creation (the join handle resolves it);
// until then updates only buffer and persistence is a no-op.
type Recorder struct {
	svc    *Service
	userID string

	mu      sync.Mutex
	callID  string
	entries []Entry
}

func NewRecorder(svc *Service, userID string) *Recorder {
	return &Recorder{svc: svc, userID: userID}
}

// SetCall assigns the call identity once the join handle is resolved.
func (r *Recorder) SetCall(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callID = callID
}

// Update normalizes a batch, replaces the buffer, and persists the snapshot.
// Persistence failures are logged, never propagated: transcripts must not
// disturb the call flow.
func (r *Recorder) Update(ctx context.Context, raw []Entry) {
	entries := Normalize(raw)

	r.mu.Lock()
	r.entries = entries
	callID := r.callID
	r.mu.Unlock()

	if len(entries) == 0 || callID == "" || r.userID == "" {
		return
	}
	if err := r.svc.Save(ctx, r.userID, callID, entries); err != nil {
		logger.From(ctx).Error("transcript save failed", "call_id", callID, "err", err)
	}
}

// Flush persists whatever is buffered. Called once on call termination.
func (r *Recorder) Flush(ctx context.Context) {
	r.mu.Lock()
	entries := r.entries
	callID := r.callID
	r.mu.Unlock()

	if len(entries) == 0 || callID == "" || r.userID == "" {
		return
	}
	if err := r.svc.Save(ctx, r.userID, callID, entries); err != nil {
		logger.From(ctx).Error("transcript flush failed", "call_id", callID, "err", err)
	}
}

// Entries returns a copy of the current buffer for UI state reads.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
