package voice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func serveFrames(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		// Drain until the client closes its side.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func collectEvents(t *testing.T, s *WSSession, n int) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(3 * time.Second)
	for len(out) < n {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out after %d events", len(out))
		}
	}
	return out
}

func TestWSSession_TranslatesFrames(t *testing.T) {
	srv := serveFrames(t, []string{
		`{"type":"status","status":"connected"}`,
		`{"type":"noise","payload":"ignored"}`,
		`{"type":"transcript","transcripts":[{"speaker":"agent","text":"hello"}]}`,
		`{"type":"end"}`,
	})
	defer srv.Close()

	s := NewWSSession()
	if err := s.JoinCall(context.Background(), srv.URL); err != nil {
		t.Fatalf("JoinCall: %v", err)
	}
	defer s.LeaveCall()

	events := collectEvents(t, s, 3)
	if events[0].Kind != EventStatus || events[0].Status != "connected" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Kind != EventTranscript || len(events[1].Entries) != 1 {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[2].Kind != EventEnd {
		t.Fatalf("unexpected third event: %+v", events[2])
	}

	if got := s.Status(); got != "connected" {
		t.Fatalf("Status() = %q", got)
	}
	if got := s.Transcripts(); len(got) != 1 || got[0].Text != "hello" {
		t.Fatalf("Transcripts() = %+v", got)
	}
}

func TestWSSession_LocalLeaveEndsCleanly(t *testing.T) {
	srv := serveFrames(t, []string{
		`{"type":"status","status":"connected"}`,
	})
	defer srv.Close()

	s := NewWSSession()
	if err := s.JoinCall(context.Background(), srv.URL); err != nil {
		t.Fatalf("JoinCall: %v", err)
	}

	collectEvents(t, s, 1)
	s.LeaveCall()
	s.LeaveCall() // idempotent

	// The pump must close the channel without an error event.
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return
			}
			if ev.Kind == EventError {
				t.Fatalf("local leave produced error event: %v", ev.Err)
			}
		case <-timeout:
			t.Fatal("events channel never closed")
		}
	}
}
