package events

import "time"

// FlowStartedV1 is emitted when a flow run is started from the control surface.
// SessionID is empty for one-off starts that open no local session.
type FlowStartedV1 struct {
	Instance           string            `json:"instance"`
	RemoteJID          string            `json:"remoteJid"`
	URL                string            `json:"url"`
	Flow               string            `json:"flow"`
	PrefilledVariables map[string]string `json:"prefilledVariables,omitempty"`
	Variables          map[string]string `json:"variables,omitempty"`
	SessionID          string            `json:"sessionId"`
	StartedAt          time.Time         `json:"started_at"`
}

func (FlowStartedV1) EventType() string {
	return "flow.started.v1"
}

// FlowStatusChangedV1 is emitted after a status-change request was applied.
// Session is nil when the partner had no session.
type FlowStatusChangedV1 struct {
	Instance  string         `json:"instance"`
	RemoteJID string         `json:"remoteJid"`
	Status    string         `json:"status"`
	URL       string         `json:"url"`
	Flow      string         `json:"flow"`
	Session   *SessionDigest `json:"session"`
	ChangedAt time.Time      `json:"changed_at"`
}

func (FlowStatusChangedV1) EventType() string {
	return "flow.status_changed.v1"
}

// SessionDigest is the session snapshot carried by status events.
type SessionDigest struct {
	RemoteJID string    `json:"remoteJid"`
	SessionID string    `json:"sessionId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updateAt"`
}
