package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventKind enumerates what the live session can report.
type EventKind int

const (
	EventStatus EventKind = iota
	EventTranscript
	EventError
	EventEnd
)

// Event is one observation delivered by the live session read pump.
type Event struct {
	Kind    EventKind
	Status  string
	Entries []TranscriptEntry
	Err     error
}

// TranscriptEntry is one utterance as delivered on the wire.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// LiveSession is an established media-channel session with the agent.
// Events() closes when the session is over, whoever ended it.
type LiveSession interface {
	JoinCall(ctx context.Context, joinURL string) error
	LeaveCall()
	Status() string
	Transcripts() []TranscriptEntry
	Events() <-chan Event
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// WSSession is the websocket LiveSession implementation.
type WSSession struct {
	dialer *websocket.Dialer
	events chan Event

	mu          sync.Mutex
	conn        *websocket.Conn
	status      string
	transcripts []TranscriptEntry

	leaveOnce sync.Once
	done      chan struct{}
}

func NewWSSession() *WSSession {
	return &WSSession{
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 16),
		status: "disconnected",
		done:   make(chan struct{}),
	}
}

// JoinCall dials the join handle and starts the read pump.
func (s *WSSession) JoinCall(ctx context.Context, joinURL string) error {
	wsURL, err := toWebsocketURL(joinURL)
	if err != nil {
		return err
	}
	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readPump(conn)
	go s.pingLoop(conn)
	return nil
}

// LeaveCall tears the connection down. Safe to call more than once and
// concurrently with pump shutdown.
func (s *WSSession) LeaveCall() {
	s.leaveOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			conn.Close()
		}
	})
}

func (s *WSSession) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *WSSession) Transcripts() []TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TranscriptEntry, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}

func (s *WSSession) Events() <-chan Event {
	return s.events
}

// wireFrame is the superset of every frame kind the agent service sends.
// Unknown types are ignored.
type wireFrame struct {
	Type        string            `json:"type"`
	Status      string            `json:"status"`
	Transcripts []TranscriptEntry `json:"transcripts"`
	Message     string            `json:"message"`
}

func (s *WSSession) readPump(conn *websocket.Conn) {
	defer close(s.events)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if s.wasClosedLocally() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.emit(Event{Kind: EventEnd})
				return
			}
			s.emit(Event{Kind: EventError, Err: fmt.Errorf("voice: session read: %w", err)})
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		switch frame.Type {
		case "status":
			s.mu.Lock()
			s.status = frame.Status
			s.mu.Unlock()
			s.emit(Event{Kind: EventStatus, Status: frame.Status})
		case "transcript":
			s.mu.Lock()
			s.transcripts = frame.Transcripts
			s.mu.Unlock()
			s.emit(Event{Kind: EventTranscript, Entries: frame.Transcripts})
		case "error":
			s.emit(Event{Kind: EventError, Err: errors.New("voice: session error: " + frame.Message)})
		case "end":
			s.emit(Event{Kind: EventEnd})
		}
	}
}

func (s *WSSession) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *WSSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *WSSession) wasClosedLocally() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func toWebsocketURL(joinURL string) (string, error) {
	u, err := url.Parse(joinURL)
	if err != nil {
		return "", fmt.Errorf("voice: bad join url: %w", err)
	}
	switch {
	case strings.EqualFold(u.Scheme, "https"):
		u.Scheme = "wss"
	case strings.EqualFold(u.Scheme, "http"):
		u.Scheme = "ws"
	case strings.EqualFold(u.Scheme, "wss"), strings.EqualFold(u.Scheme, "ws"):
	default:
		return "", fmt.Errorf("voice: unsupported join url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
