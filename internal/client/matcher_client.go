package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/salonpos/access-service/internal/models"
)

// IdentifyInput carries one captured frame to the matcher sidecar.
type IdentifyInput struct {
	Image         string `json:"image"` // base64-encoded frame
	AntiSpoofing  bool   `json:"antiSpoofing"`
	LiveDetection bool   `json:"liveDetection"`
}

// FaceMatcher is the biometric matching collaborator. The matching model
// itself lives in a separate process; this service only consumes candidate,
// confidence, liveness and quality.
type FaceMatcher interface {
	Identify(ctx context.Context, in IdentifyInput) (models.IdentificationResult, error)
}

// MatcherClient talks to the local matcher sidecar over HTTP.
type MatcherClient struct {
	baseURL string
	http    *http.Client
}

func NewMatcherClient(baseURL string, timeout time.Duration) *MatcherClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MatcherClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *MatcherClient) Identify(ctx context.Context, in IdentifyInput) (models.IdentificationResult, error) {
	var out models.IdentificationResult

	body, err := json.Marshal(in)
	if err != nil {
		return out, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/identify", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", models.ErrMatcherUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("%w: status %d", models.ErrMatcherUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("%w: bad response: %v", models.ErrMatcherUnavailable, err)
	}
	return out, nil
}
