package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/flowbridge/internal/flowengine"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// handleSeparator joins the local prefix and the engine session id.
const handleSeparator = "-"

var (
	// ErrMissingSessionID means the engine answered a start call without a session id.
	ErrMissingSessionID = errors.New("sessions: session id not found in engine reply")
	// ErrDisabled is returned by control operations on a disabled or unknown flow.
	ErrDisabled = errors.New("sessions: flow disabled")
)

// FlowStarter opens new runs on the flow engine.
type FlowStarter interface {
	Start(ctx context.Context, baseURL, flow string, vars map[string]string) (*flowengine.Reply, error)
}

// Decision is the lifecycle outcome of one inbound turn.
type Decision string

const (
	DecisionDisabled Decision = "disabled"
	DecisionIgnored  Decision = "ignored"
	DecisionCreated  Decision = "created"
	DecisionRenewed  Decision = "renewed"
	DecisionResumed  Decision = "resumed"
)

// Partner identifies the sender of an inbound turn.
type Partner struct {
	RemoteJID string
	PushName  string
	FromMe    bool
}

// Resolution is what Resolve decided, with the persisted state it left behind.
// Opening is set for DecisionCreated and DecisionRenewed.
type Resolution struct {
	Decision Decision
	Config   FlowConfig
	Session  Session
	Opening  *flowengine.Reply
}

// Manager drives the per-partner session state machine for one flow instance.
type Manager struct {
	instance  string
	store     *Store
	engine    FlowStarter
	logger    *logging.Logger
	now       func() time.Time
	newPrefix func() string
}

// NewManager creates a lifecycle manager for the flow stored under instance.
func NewManager(instance string, store *Store, engine FlowStarter, logger *logging.Logger) *Manager {
	if store == nil || engine == nil {
		panic("sessions: store and engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Manager{
		instance:  instance,
		store:     store,
		engine:    engine,
		logger:    logger.With("instance", instance),
		now:       time.Now,
		newPrefix: randomPrefix,
	}
}

// WithClock overrides the time source.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	if now != nil {
		m.now = now
	}
	return m
}

// Instance returns the flow key the manager operates on.
func (m *Manager) Instance() string {
	return m.instance
}

// Find returns the current flow config, Disabled() when unavailable.
func (m *Manager) Find(ctx context.Context) FlowConfig {
	return m.store.Find(ctx, m.instance)
}

// Save replaces the stored flow config.
func (m *Manager) Save(ctx context.Context, cfg FlowConfig) error {
	return m.store.Save(ctx, m.instance, cfg)
}

// Resolve applies the lifecycle rules for an inbound turn from p. Every
// decision other than disabled/ignored has been persisted when it returns.
func (m *Manager) Resolve(ctx context.Context, p Partner) (Resolution, error) {
	cfg := m.Find(ctx)
	if !cfg.Enabled {
		return Resolution{Decision: DecisionDisabled, Config: cfg}, nil
	}
	if p.FromMe && !cfg.ListeningFromMe {
		return Resolution{Decision: DecisionIgnored, Config: cfg}, nil
	}

	sess, exists := cfg.Sessions.Get(p.RemoteJID)
	if exists && m.expired(cfg, sess) {
		m.logger.Info("session expired", "remote_jid", p.RemoteJID, "session_id", sess.SessionID)
		cfg.Sessions.Delete(p.RemoteJID)
		updated, fresh, opening, err := m.Create(ctx, cfg, p, nil)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Decision: DecisionRenewed, Config: updated, Session: fresh, Opening: opening}, nil
	}

	if !exists {
		updated, fresh, opening, err := m.Create(ctx, cfg, p, nil)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Decision: DecisionCreated, Config: updated, Session: fresh, Opening: opening}, nil
	}

	if sess.Status != StatusOpened {
		return Resolution{Decision: DecisionIgnored, Config: cfg, Session: sess}, nil
	}

	sess.UpdatedAt = m.now()
	cfg.Sessions.Put(sess)
	if err := m.Save(ctx, cfg); err != nil {
		return Resolution{}, fmt.Errorf("sessions: touch session: %w", err)
	}
	return Resolution{Decision: DecisionResumed, Config: cfg, Session: sess}, nil
}

func (m *Manager) expired(cfg FlowConfig, sess Session) bool {
	if cfg.Expire <= 0 {
		return false
	}
	idleMinutes := int(m.now().Sub(sess.UpdatedAt) / time.Minute)
	return idleMinutes > cfg.Expire
}

// Create starts a flow run for p and appends the resulting session to cfg.
// Nothing is persisted when the engine call fails or returns no session id.
func (m *Manager) Create(ctx context.Context, cfg FlowConfig, p Partner, extra map[string]string) (FlowConfig, Session, *flowengine.Reply, error) {
	vars := m.PrefilledVariables(p, extra)
	reply, err := m.engine.Start(ctx, cfg.URL, cfg.Flow, vars)
	if err != nil {
		m.logger.Warn("flow start failed", "remote_jid", p.RemoteJID, "flow", cfg.Flow, "error", err)
		return cfg, Session{}, nil, fmt.Errorf("sessions: start flow: %w", err)
	}
	if reply == nil || reply.SessionID == "" {
		return cfg, Session{}, reply, ErrMissingSessionID
	}

	now := m.now()
	sess := Session{
		RemoteJID:          p.RemoteJID,
		SessionID:          m.newPrefix() + handleSeparator + reply.SessionID,
		Status:             StatusOpened,
		CreatedAt:          now,
		UpdatedAt:          now,
		PrefilledVariables: vars,
	}
	updated := cfg.WithSessions(cfg.Sessions)
	updated.Sessions.Put(sess)
	if err := m.Save(ctx, updated); err != nil {
		return cfg, Session{}, nil, fmt.Errorf("sessions: persist new session: %w", err)
	}
	m.logger.Info("session opened", "remote_jid", p.RemoteJID, "session_id", sess.SessionID)
	return updated, sess, reply, nil
}

// PrefilledVariables builds the start variables: extra first, then the
// partner and instance keys, which always win.
func (m *Manager) PrefilledVariables(p Partner, extra map[string]string) map[string]string {
	vars := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		vars[k] = v
	}
	vars["remoteJid"] = p.RemoteJID
	vars["pushName"] = p.PushName
	vars["instanceName"] = m.instance
	return vars
}

// Terminate removes the partner's session and persists the result.
func (m *Manager) Terminate(ctx context.Context, cfg FlowConfig, remoteJID string) (FlowConfig, error) {
	updated := cfg.WithSessions(cfg.Sessions)
	updated.Sessions.Delete(remoteJID)
	if err := m.Save(ctx, updated); err != nil {
		return cfg, fmt.Errorf("sessions: terminate session: %w", err)
	}
	m.logger.Info("session closed", "remote_jid", remoteJID)
	return updated, nil
}

// ChangeStatus sets the partner's session status. StatusClosed removes the
// session. The flow config is persisted even when no session matched. The
// returned session is nil when the partner had none.
func (m *Manager) ChangeStatus(ctx context.Context, remoteJID string, status Status) (FlowConfig, *Session, error) {
	cfg := m.Find(ctx)
	if !cfg.Enabled {
		return cfg, nil, ErrDisabled
	}

	var changed *Session
	if sess, ok := cfg.Sessions.Get(remoteJID); ok {
		sess.Status = status
		if status == StatusClosed {
			cfg.Sessions.Delete(remoteJID)
		} else {
			cfg.Sessions.Put(sess)
		}
		changed = &sess
	}
	if err := m.Save(ctx, cfg); err != nil {
		return cfg, changed, fmt.Errorf("sessions: change status: %w", err)
	}
	return cfg, changed, nil
}

// EngineSessionID extracts the engine-issued part of a composite handle.
func EngineSessionID(handle string) string {
	_, engineID, found := strings.Cut(handle, handleSeparator)
	if !found {
		return handle
	}
	return engineID
}

func randomPrefix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
