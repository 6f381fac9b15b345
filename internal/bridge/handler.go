package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/flowbridge/internal/events"
	"github.com/wolfman30/flowbridge/internal/flowengine"
	httpmiddleware "github.com/wolfman30/flowbridge/internal/http/middleware"
	"github.com/wolfman30/flowbridge/internal/observability/metrics"
	"github.com/wolfman30/flowbridge/internal/sessions"
	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Handler exposes the bridge control surface over HTTP.
type Handler struct {
	bridge   *Bridge
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

// NewHandler creates the control surface handler. A nil gatherer disables /stats.
func NewHandler(b *Bridge, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{bridge: b, gatherer: gatherer, logger: logger}
}

// Routes returns a chi router with the bridge routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(correlateRequest)
	r.Post("/messages", h.ReceiveMessage)
	r.Post("/start", h.Start)
	r.Post("/status", h.ChangeStatus)
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.PutConfig)
	r.Get("/stats", h.Stats)
	return r
}

// correlateRequest stamps emitted flow events with the request id.
func correlateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httpmiddleware.RequestIDFromContext(r.Context())
		next.ServeHTTP(w, r.WithContext(events.WithCorrelationID(r.Context(), id)))
	})
}

// ReceiveMessage runs an inbound turn for a chat-style message event.
// POST /bridge/messages
func (h *Handler) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	turn, err := h.bridge.HandleInbound(r.Context(), msg)
	if err != nil {
		h.fail(w, "inbound turn failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, turn)
}

// Start starts a flow run for a partner.
// POST /bridge/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.bridge.StartSession(r.Context(), req)
	if err != nil {
		h.fail(w, "flow start failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type statusRequest struct {
	RemoteJID string `json:"remoteJid"`
	Status    string `json:"status"`
}

// ChangeStatus applies a status change to a partner's session.
// POST /bridge/status
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := h.bridge.ChangeStatus(r.Context(), req.RemoteJID, sessions.Status(req.Status))
	if err != nil {
		h.fail(w, "status change failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetConfig returns the stored flow configuration.
// GET /bridge/config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bridge.FindConfig(r.Context()))
}

// PutConfig replaces the flow configuration. Sessions are kept unless the
// body carries a sessions array.
// PUT /bridge/config
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	var fields map[string]json.RawMessage
	var cfg sessions.FlowConfig
	if err := json.Unmarshal(data, &fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid flow config")
		return
	}
	_, replaceSessions := fields["sessions"]

	saved, err := h.bridge.SetConfig(r.Context(), cfg, replaceSessions)
	if err != nil {
		h.fail(w, "flow config save failed", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Stats reports counters read back from the metrics registry.
// GET /bridge/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.gatherer == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	writeJSON(w, http.StatusOK, metrics.Snap(h.gatherer))
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err, "status", status)
	} else {
		h.logger.Warn(msg, "error", err, "status", status)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var apiErr *flowengine.APIError
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrFlowDisabled):
		return http.StatusNotFound
	case errors.Is(err, sessions.ErrMissingSessionID),
		errors.Is(err, flowengine.ErrUnreachable),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
