package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/service"
	"github.com/salonpos/access-service/internal/util/logger"
)

// AttemptsHandler serves the audit trail, newest first.
type AttemptsHandler struct {
	access *service.AccessService
}

func NewAttemptsHandler(access *service.AccessService) *AttemptsHandler {
	return &AttemptsHandler{access: access}
}

func (h *AttemptsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	attempts, err := h.access.ListAttempts(r.Context(), limit)
	if err != nil {
		logger.Error("List attempts failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, models.CodeInternal, "could not load access log")
		return
	}
	if attempts == nil {
		attempts = []models.AccessAttempt{}
	}

	writeSuccess(w, attempts)
}

// Export streams the audit trail as CSV for offline review. JSON callers use
// List; this exists for the operators who want a spreadsheet.
func (h *AttemptsHandler) Export(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	attempts, err := h.access.ListAttempts(r.Context(), limit)
	if err != nil {
		logger.Error("Export attempts failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, models.CodeInternal, "could not load access log")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="access-attempts-%s.csv"`, time.Now().UTC().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "created_at", "door_id", "door_name", "success", "error", "remote_addr", "user_id"})
	for _, a := range attempts {
		errMsg := ""
		if a.ErrorMessage != nil {
			errMsg = *a.ErrorMessage
		}
		userID := ""
		if a.UserID != nil {
			userID = *a.UserID
		}
		_ = cw.Write([]string{
			a.ID.String(),
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.DoorID,
			a.DoorName,
			strconv.FormatBool(a.Success),
			errMsg,
			a.RemoteAddr,
			userID,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.Error("Export attempts write failed: %v", err)
	}
}
