package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/repository"
	"github.com/salonpos/access-service/internal/telemetry"
	"github.com/salonpos/access-service/internal/util/logger"
)

// Publisher is the minimal interface the orchestrator needs for shipping
// audit events to a secondary sink.
type Publisher interface {
	Publish(any)
}

// AccessService orchestrates the capture-to-unlock pipeline: decision engine,
// door relay, audit log. All guards run upstream in the HTTP middleware
// chain; by the time OpenDoor executes, the caller is already authorized.
type AccessService struct {
	matcher  client.FaceMatcher
	doors    client.DoorController
	engine   *DecisionEngine
	attempts repository.AccessAttemptRepository
	shipper  Publisher
	now      func() time.Time
}

func NewAccessService(
	matcher client.FaceMatcher,
	doors client.DoorController,
	engine *DecisionEngine,
	attempts repository.AccessAttemptRepository,
	shipper Publisher,
) *AccessService {
	return &AccessService{
		matcher:  matcher,
		doors:    doors,
		engine:   engine,
		attempts: attempts,
		shipper:  shipper,
		now:      time.Now,
	}
}

type OpenDoorInput struct {
	DoorID     string
	DoorName   string
	UserID     *string
	RemoteAddr string
}

// Identify runs one captured frame through the matcher and the decision
// engine. It has no hardware side effect and writes no audit record; only
// door actuations are audited.
func (s *AccessService) Identify(ctx context.Context, in client.IdentifyInput) (models.IdentificationResult, Decision, error) {
	result, err := s.matcher.Identify(ctx, in)
	if err != nil {
		return models.IdentificationResult{}, Decision{}, err
	}
	d := s.engine.Decide(result)
	logger.Debug("Identify: confidence=%.3f live=%t quality=%.3f reason=%s",
		result.Confidence, result.IsLive, result.QualityScore, d.Reason)
	return result, d, nil
}

// OpenDoor actuates the relay at most once and writes exactly one audit
// record for the actuation, success or failure. A context cancelled before
// actuation aborts with no record and no unlock; a relay failure is a normal
// recorded outcome, not an error return.
func (s *AccessService) OpenDoor(ctx context.Context, in OpenDoorInput) (*models.AccessAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlockErr := s.doors.Unlock(ctx, in.DoorID)

	attempt := &models.AccessAttempt{
		ID:         uuid.New(),
		DoorID:     in.DoorID,
		DoorName:   in.DoorName,
		Success:    unlockErr == nil,
		RemoteAddr: in.RemoteAddr,
		UserID:     in.UserID,
		CreatedAt:  s.now().UTC(),
	}
	if unlockErr != nil {
		msg := unlockErr.Error()
		attempt.ErrorMessage = &msg
	}

	s.record(ctx, attempt)
	return attempt, nil
}

// AutoUnlock is the capture-triggered flow: identify, decide, and unlock on
// approval. Every attempt that reaches the decision stage leaves exactly one
// audit record, including rejections and matcher failures.
func (s *AccessService) AutoUnlock(ctx context.Context, in client.IdentifyInput, door OpenDoorInput) (models.IdentificationResult, Decision, *models.AccessAttempt, error) {
	result, err := s.matcher.Identify(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned capture: no partial audit record.
			return models.IdentificationResult{}, Decision{}, nil, ctx.Err()
		}
		attempt := s.rejectedAttempt(ctx, door, fmt.Sprintf("matcher: %v", err))
		return models.IdentificationResult{}, Decision{}, attempt, err
	}

	d := s.engine.Decide(result)
	if !d.Approved {
		attempt := s.rejectedAttempt(ctx, door, d.Reason)
		return result, d, attempt, nil
	}

	door.UserID = result.UserID
	attempt, err := s.OpenDoor(ctx, door)
	return result, d, attempt, err
}

// ListAttempts returns recent audit records, newest first.
func (s *AccessService) ListAttempts(ctx context.Context, limit int) ([]models.AccessAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	return s.attempts.ListRecent(ctx, limit)
}

func (s *AccessService) rejectedAttempt(ctx context.Context, door OpenDoorInput, reason string) *models.AccessAttempt {
	attempt := &models.AccessAttempt{
		ID:           uuid.New(),
		DoorID:       door.DoorID,
		DoorName:     door.DoorName,
		Success:      false,
		ErrorMessage: &reason,
		RemoteAddr:   door.RemoteAddr,
		UserID:       door.UserID,
		CreatedAt:    s.now().UTC(),
	}
	s.record(ctx, attempt)
	return attempt
}

// record persists the attempt and ships it to the audit topic. A failed
// write is logged for alerting but never masks the door outcome; the insert
// runs detached from the request context so an actuation that already
// happened is always recorded.
func (s *AccessService) record(ctx context.Context, attempt *models.AccessAttempt) {
	if err := s.attempts.Insert(context.WithoutCancel(ctx), attempt); err != nil {
		logger.Error("Audit write failed for attempt %s (door %s): %v", attempt.ID, attempt.DoorID, err)
	}
	if s.shipper != nil {
		event := telemetry.AccessAuditEvent{
			Timestamp:  attempt.CreatedAt,
			AttemptID:  attempt.ID.String(),
			DoorID:     attempt.DoorID,
			Success:    attempt.Success,
			RemoteAddr: attempt.RemoteAddr,
		}
		if attempt.ErrorMessage != nil {
			event.Reason = *attempt.ErrorMessage
		}
		if attempt.UserID != nil {
			event.UserID = *attempt.UserID
		}
		s.shipper.Publish(event)
	}
}
