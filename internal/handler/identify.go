package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/service"
	"github.com/salonpos/access-service/internal/util/logger"
)

// IdentifyHandler exposes the matcher to the capture UI. Identification has
// no hardware side effect, so only the origin guard applies.
type IdentifyHandler struct {
	access *service.AccessService
}

func NewIdentifyHandler(access *service.AccessService) *IdentifyHandler {
	return &IdentifyHandler{access: access}
}

type identifyData struct {
	UserID       *string `json:"userId,omitempty"`
	UserName     *string `json:"userName,omitempty"`
	Confidence   float64 `json:"confidence"`
	IsLive       bool    `json:"isLive"`
	QualityScore float64 `json:"qualityScore"`
	Decision     string  `json:"decision"`
}

func (h *IdentifyHandler) Identify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req models.IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		writeJSONError(w, http.StatusBadRequest, models.CodeBadRequest, "image is required")
		return
	}

	result, decision, err := h.access.Identify(ctx, client.IdentifyInput{
		Image:         req.Image,
		AntiSpoofing:  req.AntiSpoofing,
		LiveDetection: req.LiveDetection,
	})
	if err != nil {
		logger.Error("Identify failed: %v", err)
		writeJSONError(w, http.StatusBadGateway, models.CodeInternal, "matcher service unavailable")
		return
	}

	writeSuccess(w, identifyData{
		UserID:       result.UserID,
		UserName:     result.UserName,
		Confidence:   result.Confidence,
		IsLive:       result.IsLive,
		QualityScore: result.QualityScore,
		Decision:     decision.Reason,
	})
}
