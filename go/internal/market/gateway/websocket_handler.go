package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/marketerr"
	"github.com/rs/zerolog/log"
)

// MemberHeader carries the caller identity set by the auth proxy.
const MemberHeader = "X-Member-Id"

type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// memberID reads the caller from the header, falling back to the query for
// browser clients that cannot set headers on the upgrade request.
func memberID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(MemberHeader)
	if raw == "" {
		raw = r.URL.Query().Get("member_id")
	}
	return uuid.Parse(raw)
}

// HandleSessionConnection subscribes the caller to one session's events.
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "invalid session_id", http.StatusBadRequest)
		return
	}
	member, err := memberID(r)
	if err != nil {
		http.Error(w, "missing or invalid member id", http.StatusUnauthorized)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, member, sessionID); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("member_id", member.String()).
			Msg("failed to open WebSocket connection")
		// a failed upgrade has already written its response
		if kind := marketerr.KindOf(err); kind != marketerr.KindUnknown {
			http.Error(w, marketerr.CodeOf(err), statusFor(kind))
		}
		return
	}
}

func statusFor(kind marketerr.Kind) int {
	switch kind {
	case marketerr.KindValidation:
		return http.StatusBadRequest
	case marketerr.KindNotFound:
		return http.StatusNotFound
	case marketerr.KindAuthorization:
		return http.StatusForbidden
	case marketerr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusConflict
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/session", h.HandleSessionConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
