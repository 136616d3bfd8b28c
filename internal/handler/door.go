package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/service"
	"github.com/salonpos/access-service/internal/util/logger"
)

// DoorHandler exposes the hardware-actuating operations. The full guard
// chain (origin, secret, rate limit) is mounted in front of these routes.
type DoorHandler struct {
	access        *service.AccessService
	defaultDoorID string
}

func NewDoorHandler(access *service.AccessService, defaultDoorID string) *DoorHandler {
	return &DoorHandler{access: access, defaultDoorID: defaultDoorID}
}

type openDoorData struct {
	AttemptID string `json:"attemptId"`
	DoorID    string `json:"doorId"`
	Opened    bool   `json:"opened"`
}

// OpenDoor handles an operator-initiated unlock.
func (h *DoorHandler) OpenDoor(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req models.OpenDoorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "invalid request body")
		return
	}

	doorID := strings.TrimSpace(req.DoorID)
	if doorID == "" {
		doorID = h.defaultDoorID
	}

	in := service.OpenDoorInput{
		DoorID:     doorID,
		DoorName:   req.DoorName,
		RemoteAddr: r.RemoteAddr,
	}
	if req.UserID != "" {
		in.UserID = &req.UserID
	}

	attempt, err := h.access.OpenDoor(ctx, in)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Caller went away before actuation; nothing happened.
			return
		}
		logger.Error("OpenDoor failed before actuation: %v", err)
		writeJSONError(w, http.StatusInternalServerError, models.CodeInternal, "unexpected server error")
		return
	}

	h.writeAttempt(w, attempt)
}

// AutoUnlock handles the capture-triggered flow: one frame in, an unlock out
// when the decision engine approves.
func (h *DoorHandler) AutoUnlock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	var req struct {
		models.IdentifyRequest
		DoorID   string `json:"doorId"`
		DoorName string `json:"doorName,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "image is required")
		return
	}

	doorID := strings.TrimSpace(req.DoorID)
	if doorID == "" {
		doorID = h.defaultDoorID
	}

	result, decision, attempt, err := h.access.AutoUnlock(ctx,
		client.IdentifyInput{
			Image:         req.Image,
			AntiSpoofing:  req.AntiSpoofing,
			LiveDetection: req.LiveDetection,
		},
		service.OpenDoorInput{
			DoorID:     doorID,
			DoorName:   req.DoorName,
			RemoteAddr: r.RemoteAddr,
		},
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("AutoUnlock matcher failure: %v", err)
		writeJSONError(w, http.StatusBadGateway, models.CodeInternal, "matcher service unavailable")
		return
	}

	if !decision.Approved {
		// A valid negative outcome: report the reason, never the hardware.
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"data": identifyData{
				UserID:       result.UserID,
				UserName:     result.UserName,
				Confidence:   result.Confidence,
				IsLive:       result.IsLive,
				QualityScore: result.QualityScore,
				Decision:     decision.Reason,
			},
			"error": map[string]any{
				"code":    "match_rejected",
				"message": rejectionMessage(decision.Reason),
			},
		})
		return
	}

	h.writeAttempt(w, attempt)
}

func (h *DoorHandler) writeAttempt(w http.ResponseWriter, attempt *models.AccessAttempt) {
	if !attempt.Success {
		msg := "door hardware reported failure"
		if attempt.ErrorMessage != nil {
			msg = *attempt.ErrorMessage
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"data": openDoorData{
				AttemptID: attempt.ID.String(),
				DoorID:    attempt.DoorID,
				Opened:    false,
			},
			"error": map[string]any{
				"code":    "hardware_error",
				"message": msg,
			},
		})
		return
	}

	writeSuccess(w, openDoorData{
		AttemptID: attempt.ID.String(),
		DoorID:    attempt.DoorID,
		Opened:    true,
	})
}

func rejectionMessage(reason string) string {
	switch reason {
	case service.ReasonNoMatch:
		return "no reliable match"
	case service.ReasonLivenessFailed:
		return "liveness check failed"
	case service.ReasonBelowMatch:
		return "no reliable match"
	case service.ReasonBelowAutoApprove:
		return "match found but below auto-approval threshold"
	default:
		return reason
	}
}
