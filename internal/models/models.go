package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentificationResult is the matcher's verdict for a single captured frame.
// A nil UserID means no candidate was found. Values are never mutated after
// the matcher returns them.
type IdentificationResult struct {
	UserID       *string `json:"userId,omitempty"`
	UserName     *string `json:"userName,omitempty"`
	Confidence   float64 `json:"confidence"`
	IsLive       bool    `json:"isLive"`
	QualityScore float64 `json:"qualityScore"`
}

// AccessAttempt is one append-only audit record. Exactly one is written per
// door actuation, success or failure, and none is ever updated afterwards.
type AccessAttempt struct {
	ID           uuid.UUID `json:"id"`
	DoorID       string    `json:"doorId"`
	DoorName     string    `json:"doorName,omitempty"`
	Success      bool      `json:"success"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	RemoteAddr   string    `json:"remoteAddr"`
	UserID       *string   `json:"userId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type IdentifyRequest struct {
	Image         string `json:"image"`
	AntiSpoofing  bool   `json:"antiSpoofing"`
	LiveDetection bool   `json:"liveDetection"`
}

type OpenDoorRequest struct {
	DoorID   string `json:"doorId"`
	DoorName string `json:"doorName,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

type SessionRequest struct {
	Secret     string `json:"secret"`
	OperatorID string `json:"operatorId"`
}
