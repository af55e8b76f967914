package transcripts

import (
	"strings"
	"time"
)

// Entry is one normalized line of conversation.
type Entry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Snapshot is the persisted transcript document for one call.
// It is merge-upserted on every update batch: the transcripts field is
// replaced wholesale (the live session always redelivers the full accumulated
// list, not a delta) and LastUpdated is refreshed; CreatedAt is kept.
type Snapshot struct {
	CallID      string    `json:"call_id" db:"call_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Transcripts []Entry   `json:"transcripts" db:"transcripts"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Normalize cleans a raw transcript batch: entries with empty text are
// dropped and a missing speaker defaults to "unknown".
func Normalize(raw []Entry) []Entry {
	out := make([]Entry, 0, len(raw))
	for _, e := range raw {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		if e.Speaker == "" {
			e.Speaker = "unknown"
		}
		out = append(out, e)
	}
	return out
}
