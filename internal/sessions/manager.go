package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSigningKey = errors.New("sessions: no signing key configured")
	ErrInvalidToken = errors.New("sessions: invalid token")
)

// Manager issues and verifies short-lived HS256 operator session tokens.
// A valid session lets an operator open doors without re-sending the shared
// secret on every request.
type Manager struct {
	signingKey []byte
	tokenTTL   time.Duration
	issuer     string
	now        func() time.Time
}

type Config struct {
	SigningKey string
	TokenTTL   time.Duration
	Issuer     string
}

func NewManager(cfg Config) *Manager {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 15 * time.Minute
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "access-service"
	}
	return &Manager{
		signingKey: []byte(cfg.SigningKey),
		tokenTTL:   cfg.TokenTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// Enabled reports whether session issuance is configured.
func (m *Manager) Enabled() bool {
	return len(m.signingKey) > 0
}

// Issue mints a session token for operatorID.
func (m *Manager) Issue(operatorID string) (string, time.Time, error) {
	if !m.Enabled() {
		return "", time.Time{}, ErrNoSigningKey
	}
	now := m.now()
	expiresAt := now.Add(m.tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   operatorID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sessions: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token, returning the operator id.
func (m *Manager) Verify(tokenString string) (string, error) {
	if !m.Enabled() {
		return "", ErrNoSigningKey
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return m.now() }))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != m.issuer || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
