package transcripts

import (
	"context"
	"errors"
	"strings"
	"time"

	"voicechat-platform/pkg/logger"
)

var ErrInvalidArgument = errors.New("transcripts: invalid argument")

// Repository is the persistence contract for transcript snapshots.
// Upsert must merge by call id, never destructively recreate: LastUpdated and
// the transcript list are replaced, CreatedAt survives from the first write.
type Repository interface {
	Upsert(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, callID string) (Snapshot, bool, error)
	LatestByUser(ctx context.Context, userID string) (Snapshot, bool, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Save merge-upserts the full transcript list for a call.
func (s *Service) Save(ctx context.Context, userID, callID string, entries []Entry) error {
	if userID == "" || callID == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	return s.repo.Upsert(ctx, Snapshot{
		CallID:      callID,
		UserID:      userID,
		Transcripts: entries,
		LastUpdated: now,
		CreatedAt:   now,
	})
}

// Get returns the persisted snapshot for a call.
func (s *Service) Get(ctx context.Context, callID string) (Snapshot, bool, error) {
	if callID == "" {
		return Snapshot{}, false, ErrInvalidArgument
	}
	return s.repo.Get(ctx, callID)
}

// LatestSummary flattens the user's most recent call transcript into
// "speaker: text" lines for the agent's conversation context.
// Empty string on any miss or failure; this feed is best-effort.
func (s *Service) LatestSummary(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	snap, ok, err := s.repo.LatestByUser(ctx, userID)
	if err != nil {
		logger.From(ctx).Error("latest transcript lookup failed", "user_id", userID, "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	lines := make([]string, 0, len(snap.Transcripts))
	for _, e := range snap.Transcripts {
		lines = append(lines, e.Speaker+": "+e.Text)
	}
	return strings.Join(lines, "\n")
}
