package sessions

import (
	"bytes"
	"encoding/json"
	"time"
)

// Status is a session's lifecycle state. Values other than the constants
// below are stored verbatim; only StatusOpened relays turns.
type Status string

const (
	StatusOpened Status = "opened"
	StatusClosed Status = "closed"
	StatusPaused Status = "paused"
)

// Session binds one conversation partner to a run of the flow engine.
type Session struct {
	RemoteJID          string            `json:"remoteJid"`
	SessionID          string            `json:"sessionId"`
	Status             Status            `json:"status"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updateAt"`
	PrefilledVariables map[string]string `json:"prefilledVariables,omitempty"`
}

func (s Session) clone() Session {
	if s.PrefilledVariables != nil {
		vars := make(map[string]string, len(s.PrefilledVariables))
		for k, v := range s.PrefilledVariables {
			vars[k] = v
		}
		s.PrefilledVariables = vars
	}
	return s
}

// FlowConfig is the persisted per-flow configuration with its active sessions.
type FlowConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Flow    string `json:"flow"`
	// Expire is the idle threshold in minutes; <= 0 disables expiry.
	Expire          int      `json:"expire"`
	KeywordFinish   string   `json:"keyword_finish,omitempty"`
	DelayMessage    int      `json:"delay_message,omitempty"` // milliseconds
	UnknownMessage  string   `json:"unknown_message,omitempty"`
	ListeningFromMe bool     `json:"listening_from_me"`
	Sessions        Sessions `json:"sessions"`
}

// Disabled is the record read paths return when a flow is missing or unreadable.
func Disabled() FlowConfig {
	return FlowConfig{Enabled: false, Sessions: Sessions{}}
}

// WithSessions copies every configuration field and attaches a copy of set.
// All lifecycle transitions persist through it.
func (c FlowConfig) WithSessions(set Sessions) FlowConfig {
	out := c
	out.Sessions = set.Clone()
	return out
}

// Clone returns a deep copy.
func (c FlowConfig) Clone() FlowConfig {
	return c.WithSessions(c.Sessions)
}

// Delay returns the configured default inter-message delay, zero when unset.
func (c FlowConfig) Delay() time.Duration {
	if c.DelayMessage <= 0 {
		return 0
	}
	return time.Duration(c.DelayMessage) * time.Millisecond
}

// Sessions is an insertion-ordered set of sessions keyed by partner. It
// serialises as a JSON array.
type Sessions struct {
	order []string
	byJID map[string]Session
}

// NewSessions builds a set from list. When a partner appears more than once
// the first entry wins.
func NewSessions(list ...Session) Sessions {
	var s Sessions
	for _, sess := range list {
		if _, exists := s.byJID[sess.RemoteJID]; exists {
			continue
		}
		s.Put(sess)
	}
	return s
}

// Get returns the session for remoteJID.
func (s Sessions) Get(remoteJID string) (Session, bool) {
	sess, ok := s.byJID[remoteJID]
	if !ok {
		return Session{}, false
	}
	return sess.clone(), true
}

// Put inserts or replaces the session for its partner, keeping the
// original position on replace.
func (s *Sessions) Put(sess Session) {
	if s.byJID == nil {
		s.byJID = make(map[string]Session)
	}
	if _, exists := s.byJID[sess.RemoteJID]; !exists {
		s.order = append(s.order, sess.RemoteJID)
	}
	s.byJID[sess.RemoteJID] = sess.clone()
}

// Delete removes the session for remoteJID and reports whether it existed.
func (s *Sessions) Delete(remoteJID string) bool {
	if _, exists := s.byJID[remoteJID]; !exists {
		return false
	}
	delete(s.byJID, remoteJID)
	for i, jid := range s.order {
		if jid == remoteJID {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of sessions.
func (s Sessions) Len() int {
	return len(s.order)
}

// List returns the sessions in insertion order.
func (s Sessions) List() []Session {
	out := make([]Session, 0, len(s.order))
	for _, jid := range s.order {
		out = append(out, s.byJID[jid].clone())
	}
	return out
}

// Clone returns a deep copy.
func (s Sessions) Clone() Sessions {
	return NewSessions(s.List()...)
}

func (s Sessions) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *Sessions) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Sessions{}
		return nil
	}
	var list []Session
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewSessions(list...)
	return nil
}
