package telemetry

import "time"

// AccessAuditEvent mirrors one AccessAttempt record for the audit topic.
type AccessAuditEvent struct {
	Timestamp  time.Time `json:"@timestamp"`
	AttemptID  string    `json:"attempt_id"`
	DoorID     string    `json:"door_id"`
	Success    bool      `json:"success"`
	Reason     string    `json:"reason,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
}
