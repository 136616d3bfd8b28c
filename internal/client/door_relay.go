package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/salonpos/access-service/internal/models"
	"github.com/salonpos/access-service/internal/util/logger"
)

// DoorController issues a hardware unlock command for a door. Implementations
// must not retry internally: actuation is at-most-once per call, and the
// caller decides whether a failed attempt is retried as a new one.
type DoorController interface {
	Unlock(ctx context.Context, doorID string) error
}

// RelayClient drives the local door relay daemon over HTTP.
type RelayClient struct {
	baseURL string
	http    *http.Client
}

func NewRelayClient(baseURL string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RelayClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type relayUnlockRequest struct {
	DoorID string `json:"door_id"`
}

type relayResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *RelayClient) Unlock(ctx context.Context, doorID string) error {
	body, err := json.Marshal(relayUnlockRequest{DoorID: doorID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/unlock", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: relay unreachable: %v", models.ErrHardware, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Error("Door relay returned status %d for door %s", resp.StatusCode, doorID)
		return fmt.Errorf("%w: relay status %d: %s", models.ErrHardware, resp.StatusCode, string(raw))
	}

	var rr relayResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("%w: bad relay response: %v", models.ErrHardware, err)
	}
	if !rr.OK {
		return fmt.Errorf("%w: relay refused unlock: %s", models.ErrHardware, rr.Error)
	}

	logger.Info("Door relay unlocked door %s", doorID)
	return nil
}
