package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/repository"
	"github.com/salonpos/access-service/internal/service"
)

type fakeMatcher struct {
	result models.IdentificationResult
	err    error
}

func (m *fakeMatcher) Identify(_ context.Context, _ client.IdentifyInput) (models.IdentificationResult, error) {
	return m.result, m.err
}

type fakeDoor struct {
	calls int
	err   error
}

func (d *fakeDoor) Unlock(_ context.Context, _ string) error {
	d.calls++
	return d.err
}

func newTestAccessService(matcher *fakeMatcher, door *fakeDoor) (*service.AccessService, *repository.MemoryAccessAttemptRepository) {
	repo := repository.NewMemoryAccessAttemptRepository()
	engine := service.NewDecisionEngine(0.70, 0.85, true)
	svc := service.NewAccessService(matcher, door, engine, repo, nil)
	return svc, repo
}

// ── Manual unlock ────────────────────────────────────────────────────────────

func TestOpenDoor_Success_RecordsOneAttempt(t *testing.T) {
	door := &fakeDoor{}
	svc, repo := newTestAccessService(&fakeMatcher{}, door)

	attempt, err := svc.OpenDoor(context.Background(), service.OpenDoorInput{
		DoorID:     "front",
		RemoteAddr: "127.0.0.1:51000",
	})
	if err != nil {
		t.Fatalf("OpenDoor: %v", err)
	}

	if door.calls != 1 {
		t.Errorf("expected 1 relay call, got %d", door.calls)
	}
	if !attempt.Success {
		t.Error("expected success=true")
	}
	if attempt.ErrorMessage != nil {
		t.Errorf("expected no error message, got %q", *attempt.ErrorMessage)
	}

	records := repo.All()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].ID != attempt.ID {
		t.Error("audit record does not match returned attempt")
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}
}

func TestOpenDoor_HardwareFailure_RecordedVerbatim(t *testing.T) {
	door := &fakeDoor{err: errors.New("relay fuse blown")}
	svc, repo := newTestAccessService(&fakeMatcher{}, door)

	attempt, err := svc.OpenDoor(context.Background(), service.OpenDoorInput{
		DoorID:     "front",
		RemoteAddr: "127.0.0.1:51000",
	})
	if err != nil {
		t.Fatalf("OpenDoor: %v", err)
	}

	if attempt.Success {
		t.Error("expected success=false")
	}
	if attempt.ErrorMessage == nil || *attempt.ErrorMessage != "relay fuse blown" {
		t.Errorf("expected verbatim relay error, got %v", attempt.ErrorMessage)
	}
	if got := len(repo.All()); got != 1 {
		t.Fatalf("expected 1 audit record, got %d", got)
	}
	if door.calls != 1 {
		t.Errorf("expected exactly 1 relay call (no retry), got %d", door.calls)
	}
}

func TestOpenDoor_CancelledContext_NoRecordNoActuation(t *testing.T) {
	door := &fakeDoor{}
	svc, repo := newTestAccessService(&fakeMatcher{}, door)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.OpenDoor(ctx, service.OpenDoorInput{DoorID: "front"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if door.calls != 0 {
		t.Errorf("expected 0 relay calls, got %d", door.calls)
	}
	if got := len(repo.All()); got != 0 {
		t.Errorf("expected 0 audit records, got %d", got)
	}
}

func TestOpenDoor_AttemptCountMatchesInvocations(t *testing.T) {
	door := &fakeDoor{}
	svc, repo := newTestAccessService(&fakeMatcher{}, door)

	const k = 7
	for i := 0; i < k; i++ {
		if i == 3 {
			door.err = errors.New("jammed")
		} else {
			door.err = nil
		}
		if _, err := svc.OpenDoor(context.Background(), service.OpenDoorInput{
			DoorID: fmt.Sprintf("door-%d", i),
		}); err != nil {
			t.Fatalf("OpenDoor %d: %v", i, err)
		}
	}

	if got := len(repo.All()); got != k {
		t.Errorf("expected %d audit records after %d attempts, got %d", k, k, got)
	}
	if door.calls != k {
		t.Errorf("expected %d relay calls, got %d", k, door.calls)
	}
}

// ── Capture-triggered flow ───────────────────────────────────────────────────

func TestAutoUnlock_Approved_UnlocksAndRecords(t *testing.T) {
	matcher := &fakeMatcher{result: models.IdentificationResult{
		UserID: strPtr("u-42"), Confidence: 0.93, IsLive: true,
	}}
	door := &fakeDoor{}
	svc, repo := newTestAccessService(matcher, door)

	_, decision, attempt, err := svc.AutoUnlock(context.Background(),
		client.IdentifyInput{Image: "ZnJhbWU="},
		service.OpenDoorInput{DoorID: "front"},
	)
	if err != nil {
		t.Fatalf("AutoUnlock: %v", err)
	}
	if !decision.Approved {
		t.Fatalf("expected approval, got reason %q", decision.Reason)
	}
	if door.calls != 1 {
		t.Errorf("expected 1 relay call, got %d", door.calls)
	}
	if attempt.UserID == nil || *attempt.UserID != "u-42" {
		t.Errorf("expected matched user on attempt, got %v", attempt.UserID)
	}
	if got := len(repo.All()); got != 1 {
		t.Errorf("expected 1 audit record, got %d", got)
	}
}

func TestAutoUnlock_BelowThreshold_NoActuationStillRecorded(t *testing.T) {
	matcher := &fakeMatcher{result: models.IdentificationResult{
		UserID: strPtr("u-42"), Confidence: 0.78, IsLive: true,
	}}
	door := &fakeDoor{}
	svc, repo := newTestAccessService(matcher, door)

	_, decision, attempt, err := svc.AutoUnlock(context.Background(),
		client.IdentifyInput{Image: "ZnJhbWU="},
		service.OpenDoorInput{DoorID: "front"},
	)
	if err != nil {
		t.Fatalf("AutoUnlock: %v", err)
	}
	if decision.Approved {
		t.Fatal("expected rejection")
	}
	if decision.Reason != service.ReasonBelowAutoApprove {
		t.Errorf("reason = %q, want %q", decision.Reason, service.ReasonBelowAutoApprove)
	}
	if door.calls != 0 {
		t.Errorf("expected 0 relay calls, got %d", door.calls)
	}

	records := repo.All()
	if len(records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(records))
	}
	if records[0].Success {
		t.Error("expected recorded attempt success=false")
	}
	if attempt.ErrorMessage == nil || *attempt.ErrorMessage != service.ReasonBelowAutoApprove {
		t.Errorf("expected rejection reason on record, got %v", attempt.ErrorMessage)
	}
}

func TestAutoUnlock_MatcherFailure_RecordedAsServiceError(t *testing.T) {
	matcher := &fakeMatcher{err: errors.New("connection refused")}
	door := &fakeDoor{}
	svc, repo := newTestAccessService(matcher, door)

	_, _, attempt, err := svc.AutoUnlock(context.Background(),
		client.IdentifyInput{Image: "ZnJhbWU="},
		service.OpenDoorInput{DoorID: "front"},
	)
	if err == nil {
		t.Fatal("expected matcher error")
	}
	if door.calls != 0 {
		t.Errorf("expected 0 relay calls, got %d", door.calls)
	}
	if got := len(repo.All()); got != 1 {
		t.Fatalf("expected 1 audit record, got %d", got)
	}
	if attempt == nil || attempt.Success {
		t.Error("expected failed attempt record")
	}
}

func TestAutoUnlock_CancelledDuringCapture_NoRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	matcher := &fakeMatcher{err: context.Canceled}
	door := &fakeDoor{}
	svc, repo := newTestAccessService(matcher, door)

	_, _, attempt, err := svc.AutoUnlock(ctx,
		client.IdentifyInput{Image: "ZnJhbWU="},
		service.OpenDoorInput{DoorID: "front"},
	)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempt != nil {
		t.Error("expected no attempt record for abandoned capture")
	}
	if got := len(repo.All()); got != 0 {
		t.Errorf("expected 0 audit records, got %d", got)
	}
}
