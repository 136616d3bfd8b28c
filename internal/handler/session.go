package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/sessions"
	"github.com/salonpos/access-service/internal/util/logger"
)

// SessionHandler exchanges the shared secret for a short-lived operator
// token, so the secret itself does not have to accompany every door call.
type SessionHandler struct {
	manager *sessions.Manager
	secret  string
}

func NewSessionHandler(manager *sessions.Manager, secret string) *SessionHandler {
	return &SessionHandler{manager: manager, secret: secret}
}

type sessionData struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeJSONError(w, http.StatusServiceUnavailable, models.CodeServiceUnavailable,
			"operator sessions are not configured")
		return
	}
	if h.secret == "" {
		writeJSONError(w, http.StatusServiceUnavailable, models.CodeServiceUnavailable,
			"door secret is not configured")
		return
	}

	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "invalid request body")
		return
	}

	operatorID := strings.TrimSpace(req.OperatorID)
	if operatorID == "" {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "operatorId is required")
		return
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		logger.Warn("Session issuance rejected for %s", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, models.CodeUnauthorized, "invalid secret")
		return
	}

	token, expiresAt, err := h.manager.Issue(operatorID)
	if err != nil {
		logger.Error("Session issuance failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, models.CodeInternal, "could not issue session")
		return
	}

	writeSuccess(w, sessionData{Token: token, ExpiresAt: expiresAt})
}
