package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func secretRequest(h http.Handler, secret, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/door/open", nil)
	req.RemoteAddr = "127.0.0.1:52000"
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSecretGuard_MatchingSecretPasses(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{Secret: "hunter2"}, nil)
	h := guard.Handler(okHandler())

	if rec := secretRequest(h, "hunter2", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSecretGuard_WrongOrMissingSecretRejected(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{Secret: "hunter2"}, nil)
	h := guard.Handler(okHandler())

	if rec := secretRequest(h, "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", rec.Code)
	}
	if rec := secretRequest(h, "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: status = %d, want 401", rec.Code)
	}
}

func TestSecretGuard_UnconfiguredDevelopmentPasses(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{AllowUnconfigured: true}, nil)
	h := guard.Handler(okHandler())

	if rec := secretRequest(h, "", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with development bypass", rec.Code)
	}
}

func TestSecretGuard_UnconfiguredProductionIsUnavailable(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{}, nil)
	h := guard.Handler(okHandler())

	// Any supplied header is irrelevant: the service cannot authorize at all.
	for _, supplied := range []string{"", "anything"} {
		if rec := secretRequest(h, supplied, ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("supplied %q: status = %d, want 503", supplied, rec.Code)
		}
	}
}

type fakeVerifier struct {
	operatorID string
	err        error
}

func (v fakeVerifier) Verify(string) (string, error) {
	return v.operatorID, v.err
}

func TestSecretGuard_ValidSessionBypassesSecret(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{Secret: "hunter2"}, fakeVerifier{operatorID: "op-1"})
	h := guard.Handler(okHandler())

	if rec := secretRequest(h, "", "sometoken"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with valid session", rec.Code)
	}
}

func TestSecretGuard_InvalidSessionFallsBackToSecret(t *testing.T) {
	guard := NewSecretGuard(SecretPolicy{Secret: "hunter2"}, fakeVerifier{err: errors.New("expired")})
	h := guard.Handler(okHandler())

	if rec := secretRequest(h, "hunter2", "staletoken"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 via header secret", rec.Code)
	}
	if rec := secretRequest(h, "", "staletoken"); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 with stale session and no secret", rec.Code)
	}
}
