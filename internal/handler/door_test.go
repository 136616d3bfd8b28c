package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/salonpos/access-service/internal/client"
	"github.com/salonpos/access-service/internal/handler"
	"github.com/salonpos/access-service/internal/middleware"
	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/repository"
	"github.com/salonpos/access-service/internal/service"
)

type fakeDoor struct {
	calls []string
	err   error
}

func (d *fakeDoor) Unlock(_ context.Context, doorID string) error {
	d.calls = append(d.calls, doorID)
	return d.err
}

type fakeMatcher struct {
	result models.IdentificationResult
	err    error
}

func (m *fakeMatcher) Identify(context.Context, client.IdentifyInput) (models.IdentificationResult, error) {
	return m.result, m.err
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newTestRouter wires the production route shape: origin, then secret, then
// rate limit, then the door handler.
func newTestRouter(t *testing.T, door *fakeDoor, matcher *fakeMatcher, limit int) (http.Handler, *repository.MemoryAccessAttemptRepository) {
	t.Helper()

	attempts := repository.NewMemoryAccessAttemptRepository()
	engine := service.NewDecisionEngine(0.70, 0.85, true)
	access := service.NewAccessService(matcher, door, engine, attempts, nil)

	origin := middleware.NewOriginGuard()
	secret := middleware.NewSecretGuard(middleware.SecretPolicy{Secret: "hunter2"}, nil)
	limiter := middleware.NewRateLimiter(middleware.LimiterConfig{
		Max:       limit,
		Window:    time.Minute,
		KeyPrefix: "rl:door:",
	}, middleware.NewMemoryStore(time.Second))

	doors := handler.NewDoorHandler(access, "front")

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(origin.Handler, secret.Handler, limiter.Handler)
		r.Post("/v1/door/open", doors.OpenDoor)
		r.Post("/v1/door/auto", doors.AutoUnlock)
	})
	return r, attempts
}

func postJSON(router http.Handler, path string, body any, decorate func(*http.Request)) *httptest.ResponseRecorder {
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.RemoteAddr = "127.0.0.1:51234"
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.SecretHeader, "hunter2")
	if decorate != nil {
		decorate(req)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestDoorOpen_FullChainSuccess(t *testing.T) {
	door := &fakeDoor{}
	router, attempts := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{DoorID: "back"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success envelope, got %s", rr.Body.String())
	}
	if len(door.calls) != 1 || door.calls[0] != "back" {
		t.Errorf("door calls = %v, want one call to back", door.calls)
	}
	if got := attempts.All(); len(got) != 1 || !got[0].Success {
		t.Errorf("attempts = %+v, want one successful record", got)
	}

	// Rate limit accounting rides on every admitted request.
	if rr.Header().Get("X-RateLimit-Limit") != "10" {
		t.Errorf("X-RateLimit-Limit = %q", rr.Header().Get("X-RateLimit-Limit"))
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("X-RateLimit-Remaining = %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
	if rr.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset missing")
	}
}

func TestDoorOpen_DefaultDoorID(t *testing.T) {
	door := &fakeDoor{}
	router, _ := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(door.calls) != 1 || door.calls[0] != "front" {
		t.Errorf("door calls = %v, want the configured default", door.calls)
	}
}

func TestDoorOpen_NonLoopbackBlocked(t *testing.T) {
	door := &fakeDoor{}
	router, attempts := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{DoorID: "back"},
		func(r *http.Request) { r.RemoteAddr = "203.0.113.9:40000" })

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.CodeAccessDenied {
		t.Errorf("error = %+v, want %s", resp.Error, models.CodeAccessDenied)
	}
	if len(door.calls) != 0 {
		t.Error("blocked caller must not reach the relay")
	}
	if got := attempts.All(); len(got) != 0 {
		t.Errorf("blocked caller must leave no audit record, got %d", len(got))
	}
}

func TestDoorOpen_WrongSecretRejected(t *testing.T) {
	door := &fakeDoor{}
	router, _ := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{DoorID: "back"},
		func(r *http.Request) { r.Header.Set(middleware.SecretHeader, "wrong") })

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if len(door.calls) != 0 {
		t.Error("unauthorized caller must not reach the relay")
	}
}

func TestDoorOpen_RateLimitDenies(t *testing.T) {
	door := &fakeDoor{}
	router, _ := newTestRouter(t, door, &fakeMatcher{}, 2)

	for i := 0; i < 2; i++ {
		if rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{}, nil); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rr.Code)
		}
	}

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{}, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing on 429")
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.CodeRateLimited {
		t.Errorf("error = %+v, want %s", resp.Error, models.CodeRateLimited)
	}
	if len(door.calls) != 2 {
		t.Errorf("door calls = %d, want 2 (denied request never actuates)", len(door.calls))
	}
}

func TestDoorOpen_HardwareFailureIsRecordedOutcome(t *testing.T) {
	door := &fakeDoor{err: errors.New("relay timeout after 3s")}
	router, attempts := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/open", models.OpenDoorRequest{DoorID: "back"}, nil)

	// Hardware failure is a recorded outcome, not a server error.
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false for hardware failure")
	}
	if resp.Error == nil || resp.Error.Code != "hardware_error" {
		t.Errorf("error = %+v, want hardware_error", resp.Error)
	}
	if resp.Error.Message != "relay timeout after 3s" {
		t.Errorf("message = %q, want the relay error verbatim", resp.Error.Message)
	}

	got := attempts.All()
	if len(got) != 1 || got[0].Success {
		t.Fatalf("attempts = %+v, want one failed record", got)
	}
	if got[0].ErrorMessage == nil || *got[0].ErrorMessage != "relay timeout after 3s" {
		t.Errorf("recorded error = %v", got[0].ErrorMessage)
	}
}

func TestDoorAuto_ApprovedMatchUnlocks(t *testing.T) {
	userID := "user-42"
	name := "Dana"
	door := &fakeDoor{}
	matcher := &fakeMatcher{result: models.IdentificationResult{
		UserID: &userID, UserName: &name, Confidence: 0.93, IsLive: true, QualityScore: 0.8,
	}}
	router, attempts := newTestRouter(t, door, matcher, 10)

	rr := postJSON(router, "/v1/door/auto", map[string]any{"image": "ZnJhbWU=", "doorId": "back"}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Errorf("expected success, got %s", rr.Body.String())
	}
	if len(door.calls) != 1 {
		t.Fatalf("door calls = %v", door.calls)
	}
	got := attempts.All()
	if len(got) != 1 || got[0].UserID == nil || *got[0].UserID != userID {
		t.Errorf("attempts = %+v, want one record attributed to %s", got, userID)
	}
}

func TestDoorAuto_BelowAutoApproveRejectsWithoutUnlock(t *testing.T) {
	userID := "user-42"
	door := &fakeDoor{}
	matcher := &fakeMatcher{result: models.IdentificationResult{
		UserID: &userID, Confidence: 0.78, IsLive: true,
	}}
	router, attempts := newTestRouter(t, door, matcher, 10)

	rr := postJSON(router, "/v1/door/auto", map[string]any{"image": "ZnJhbWU="}, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false for a below-threshold match")
	}
	if resp.Error == nil || resp.Error.Code != "match_rejected" {
		t.Errorf("error = %+v, want match_rejected", resp.Error)
	}
	if len(door.calls) != 0 {
		t.Error("below-threshold match must not actuate the relay")
	}
	// The rejection itself is audited.
	got := attempts.All()
	if len(got) != 1 || got[0].Success {
		t.Fatalf("attempts = %+v, want one rejection record", got)
	}
	if got[0].ErrorMessage == nil || *got[0].ErrorMessage != service.ReasonBelowAutoApprove {
		t.Errorf("recorded reason = %v", got[0].ErrorMessage)
	}
}

func TestDoorAuto_MissingImageRejected(t *testing.T) {
	door := &fakeDoor{}
	router, _ := newTestRouter(t, door, &fakeMatcher{}, 10)

	rr := postJSON(router, "/v1/door/auto", map[string]any{"doorId": "back"}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(door.calls) != 0 {
		t.Error("invalid request must not actuate the relay")
	}
}

func TestDoorAuto_MatcherDownIsBadGateway(t *testing.T) {
	door := &fakeDoor{}
	matcher := &fakeMatcher{err: models.ErrMatcherUnavailable}
	router, attempts := newTestRouter(t, door, matcher, 10)

	rr := postJSON(router, "/v1/door/auto", map[string]any{"image": "ZnJhbWU="}, nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if len(door.calls) != 0 {
		t.Error("matcher failure must not actuate the relay")
	}
	// The failed attempt still leaves an audit trail.
	if got := attempts.All(); len(got) != 1 || got[0].Success {
		t.Errorf("attempts = %+v, want one failure record", attempts.All())
	}
}
