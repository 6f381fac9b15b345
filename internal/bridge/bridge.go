package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/flowbridge/internal/events"
	"github.com/wolfman30/flowbridge/internal/flowengine"
	"github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/internal/relay"
	"github.com/wolfman30/flowbridge/internal/sessions"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

var (
	// ErrFlowDisabled is returned by control operations on a disabled or unknown flow.
	ErrFlowDisabled = errors.New("bridge: flow disabled")
	// ErrInvalidRequest marks control requests with missing fields.
	ErrInvalidRequest = errors.New("bridge: invalid request")
)

// Engine is the flow engine surface the bridge talks to.
type Engine interface {
	sessions.FlowStarter
	Continue(ctx context.Context, baseURL, sessionID, message string) (*flowengine.Reply, error)
}

// Dispatcher hands rendered actions to the outbound relay without blocking.
type Dispatcher interface {
	DispatchActions(ctx context.Context, remoteJID string, actions []relay.Action)
}

// Bridge is the entry point for inbound messages and control requests.
type Bridge struct {
	manager    *sessions.Manager
	engine     Engine
	dispatcher Dispatcher
	notifier   events.Notifier
	logger     *logging.Logger
	metrics    *metrics.BridgeMetrics
	now        func() time.Time
}

// Config wires the bridge collaborators. Notifier, Logger and Metrics are optional.
type Config struct {
	Manager    *sessions.Manager
	Engine     Engine
	Dispatcher Dispatcher
	Notifier   events.Notifier
	Logger     *logging.Logger
	Metrics    *metrics.BridgeMetrics
}

func New(cfg Config) *Bridge {
	if cfg.Manager == nil || cfg.Engine == nil || cfg.Dispatcher == nil {
		panic("bridge: manager, engine and dispatcher required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = events.NewLogNotifier(cfg.Logger)
	}
	return &Bridge{
		manager:    cfg.Manager,
		engine:     cfg.Engine,
		dispatcher: cfg.Dispatcher,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger.With("instance", cfg.Manager.Instance()),
		metrics:    cfg.Metrics,
		now:        time.Now,
	}
}

// Turn reports what HandleInbound did with a message.
type Turn struct {
	Decision   sessions.Decision `json:"decision"`
	SessionID  string            `json:"sessionId,omitempty"`
	Actions    int               `json:"actions"`
	Fallback   bool              `json:"fallback,omitempty"`
	Terminated bool              `json:"terminated,omitempty"`
}

// HandleInbound runs one inbound turn. Session state is settled and the engine
// answered before it returns; outbound sends continue in the background.
func (b *Bridge) HandleInbound(ctx context.Context, msg InboundMessage) (Turn, error) {
	if strings.TrimSpace(msg.Key.RemoteJID) == "" {
		return Turn{}, fmt.Errorf("%w: remoteJid required", ErrInvalidRequest)
	}
	turn, err := b.handleInbound(ctx, msg)
	if err != nil {
		b.metrics.ObserveTurn("failed")
		b.logger.Warn("inbound turn aborted", "remote_jid", msg.Key.RemoteJID, "error", err)
		return turn, err
	}
	b.metrics.ObserveTurn(string(turn.Decision))
	return turn, nil
}

func (b *Bridge) handleInbound(ctx context.Context, msg InboundMessage) (Turn, error) {
	remoteJID := msg.Key.RemoteJID
	res, err := b.manager.Resolve(ctx, sessions.Partner{
		RemoteJID: remoteJID,
		PushName:  msg.PushName,
		FromMe:    msg.Key.FromMe,
	})
	if err != nil {
		return Turn{}, err
	}

	turn := Turn{Decision: res.Decision, SessionID: res.Session.SessionID}
	cfg := res.Config
	content := msg.Content()

	switch res.Decision {
	case sessions.DecisionDisabled, sessions.DecisionIgnored:
		return turn, nil

	case sessions.DecisionCreated, sessions.DecisionRenewed:
		actions := relay.Render(res.Opening, cfg.Delay())
		if b.isFinish(cfg, content) {
			if _, err := b.manager.Terminate(ctx, cfg, remoteJID); err != nil {
				return turn, err
			}
			turn.Terminated = true
			turn.Actions = b.dispatch(ctx, remoteJID, actions)
			return turn, nil
		}
		if res.Opening == nil || len(res.Opening.Messages) == 0 {
			if content == "" {
				actions = append(actions, b.fallback(cfg)...)
				turn.Fallback = cfg.UnknownMessage != ""
			} else {
				reply, err := b.engine.Continue(ctx, cfg.URL, sessions.EngineSessionID(res.Session.SessionID), content)
				if err != nil {
					return turn, fmt.Errorf("bridge: continue new session: %w", err)
				}
				actions = append(actions, relay.Render(reply, cfg.Delay())...)
			}
		}
		turn.Actions = b.dispatch(ctx, remoteJID, actions)
		return turn, nil
	}

	if content == "" {
		turn.Fallback = cfg.UnknownMessage != ""
		turn.Actions = b.dispatch(ctx, remoteJID, b.fallback(cfg))
		return turn, nil
	}

	if b.isFinish(cfg, content) {
		if _, err := b.manager.Terminate(ctx, cfg, remoteJID); err != nil {
			return turn, err
		}
		turn.Terminated = true
		return turn, nil
	}

	reply, err := b.engine.Continue(ctx, cfg.URL, sessions.EngineSessionID(res.Session.SessionID), content)
	if err != nil {
		return turn, fmt.Errorf("bridge: continue session: %w", err)
	}
	if reply.Empty() {
		return turn, nil
	}
	turn.Actions = b.dispatch(ctx, remoteJID, relay.Render(reply, cfg.Delay()))
	return turn, nil
}

// isFinish reports whether content is the flow's finish keyword. The match
// ends the session whatever its age.
func (b *Bridge) isFinish(cfg sessions.FlowConfig, content string) bool {
	return content != "" && cfg.KeywordFinish != "" && strings.EqualFold(content, cfg.KeywordFinish)
}

func (b *Bridge) fallback(cfg sessions.FlowConfig) []relay.Action {
	if cfg.UnknownMessage == "" {
		return nil
	}
	return []relay.Action{relay.FallbackAction(cfg.UnknownMessage, cfg.Delay())}
}

func (b *Bridge) dispatch(ctx context.Context, remoteJID string, actions []relay.Action) int {
	if len(actions) == 0 {
		return 0
	}
	b.dispatcher.DispatchActions(ctx, remoteJID, actions)
	return len(actions)
}

// Variable is a named start variable supplied by the caller.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// StartRequest asks the bridge to start a flow run for a partner.
type StartRequest struct {
	RemoteJID    string     `json:"remoteJid"`
	URL          string     `json:"url"`
	Flow         string     `json:"flow"`
	StartSession bool       `json:"startSession"`
	Variables    []Variable `json:"variables"`
}

// StartResult describes the run that was started. Session is nil for
// one-off starts.
type StartResult struct {
	SessionID string            `json:"sessionId"`
	Session   *sessions.Session `json:"session,omitempty"`
	Actions   int               `json:"actions"`
}

// StartSession starts the flow for a partner. With StartSession set a local
// session is opened and the flow is enabled with the requested url and flow;
// otherwise the engine run is not tracked locally. The reply is relayed either way.
func (b *Bridge) StartSession(ctx context.Context, req StartRequest) (StartResult, error) {
	req.RemoteJID = strings.TrimSpace(req.RemoteJID)
	req.URL = strings.TrimSpace(req.URL)
	req.Flow = strings.TrimSpace(req.Flow)
	if req.RemoteJID == "" || req.URL == "" || req.Flow == "" {
		return StartResult{}, fmt.Errorf("%w: remoteJid, url and flow required", ErrInvalidRequest)
	}
	extra := make(map[string]string, len(req.Variables))
	for _, v := range req.Variables {
		if v.Name == "" {
			continue
		}
		extra[v.Name] = v.Value
	}
	partner := sessions.Partner{RemoteJID: req.RemoteJID}

	if req.StartSession {
		return b.startTracked(ctx, req, partner, extra)
	}

	cfg := b.manager.Find(ctx)
	vars := b.manager.PrefilledVariables(partner, extra)
	reply, err := b.engine.Start(ctx, req.URL, req.Flow, vars)
	if err != nil {
		return StartResult{}, fmt.Errorf("bridge: start flow: %w", err)
	}
	result := StartResult{
		SessionID: uuid.NewString(),
		Actions:   b.dispatch(ctx, req.RemoteJID, relay.Render(reply, cfg.Delay())),
	}
	b.notify(ctx, events.FlowStartedV1{
		Instance:  b.manager.Instance(),
		RemoteJID: req.RemoteJID,
		URL:       req.URL,
		Flow:      req.Flow,
		Variables: vars,
		SessionID: result.SessionID,
		StartedAt: b.now().UTC(),
	})
	return result, nil
}

func (b *Bridge) startTracked(ctx context.Context, req StartRequest, partner sessions.Partner, extra map[string]string) (StartResult, error) {
	cfg := b.manager.Find(ctx)
	cfg.Enabled = true
	cfg.URL = req.URL
	cfg.Flow = req.Flow

	_, sess, opening, err := b.manager.Create(ctx, cfg, partner, extra)
	if err != nil {
		return StartResult{}, err
	}
	result := StartResult{
		SessionID: sess.SessionID,
		Session:   &sess,
		Actions:   b.dispatch(ctx, req.RemoteJID, relay.Render(opening, cfg.Delay())),
	}
	b.notify(ctx, events.FlowStartedV1{
		Instance:           b.manager.Instance(),
		RemoteJID:          req.RemoteJID,
		URL:                req.URL,
		Flow:               req.Flow,
		PrefilledVariables: sess.PrefilledVariables,
		SessionID:          sess.SessionID,
		StartedAt:          b.now().UTC(),
	})
	return result, nil
}

// StatusResult is the state left behind by a status change.
type StatusResult struct {
	Config  sessions.FlowConfig `json:"config"`
	Session *sessions.Session   `json:"session"`
}

// ChangeStatus applies an out-of-band status change for a partner's session.
func (b *Bridge) ChangeStatus(ctx context.Context, remoteJID string, status sessions.Status) (StatusResult, error) {
	remoteJID = strings.TrimSpace(remoteJID)
	if remoteJID == "" || status == "" {
		return StatusResult{}, fmt.Errorf("%w: remoteJid and status required", ErrInvalidRequest)
	}
	cfg, sess, err := b.manager.ChangeStatus(ctx, remoteJID, status)
	if errors.Is(err, sessions.ErrDisabled) {
		return StatusResult{}, ErrFlowDisabled
	}
	if err != nil {
		return StatusResult{}, err
	}

	evt := events.FlowStatusChangedV1{
		Instance:  b.manager.Instance(),
		RemoteJID: remoteJID,
		Status:    string(status),
		URL:       cfg.URL,
		Flow:      cfg.Flow,
		ChangedAt: b.now().UTC(),
	}
	if sess != nil {
		evt.Session = &events.SessionDigest{
			RemoteJID: sess.RemoteJID,
			SessionID: sess.SessionID,
			Status:    string(sess.Status),
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		}
	}
	b.notify(ctx, evt)
	return StatusResult{Config: cfg, Session: sess}, nil
}

// FindConfig returns the stored flow configuration, disabled when absent.
func (b *Bridge) FindConfig(ctx context.Context) sessions.FlowConfig {
	return b.manager.Find(ctx)
}

// SetConfig replaces the flow configuration. Unless replaceSessions is set the
// stored sessions are kept.
func (b *Bridge) SetConfig(ctx context.Context, cfg sessions.FlowConfig, replaceSessions bool) (sessions.FlowConfig, error) {
	if !replaceSessions {
		cfg = cfg.WithSessions(b.manager.Find(ctx).Sessions)
	}
	if err := b.manager.Save(ctx, cfg); err != nil {
		return sessions.FlowConfig{}, err
	}
	b.logger.Info("flow config updated", "enabled", cfg.Enabled, "flow", cfg.Flow, "sessions", cfg.Sessions.Len())
	return cfg, nil
}

func (b *Bridge) notify(ctx context.Context, evt events.Event) {
	if err := b.notifier.Notify(ctx, "flow:"+b.manager.Instance(), evt); err != nil {
		b.logger.Error("flow event not recorded", "type", evt.EventType(), "error", err)
	}
}
