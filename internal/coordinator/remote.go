package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteState is the cached view of the companion server's recording
// flag. Any failed exchange resets it to RemoteUnknown.
type RemoteState int

const (
	RemoteUnknown RemoteState = iota
	RemoteRecording
	RemoteIdle
)

func (s RemoteState) String() string {
	switch s {
	case RemoteRecording:
		return "recording"
	case RemoteIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// RemoteClient mirrors recording state to the companion server. All calls
// are best-effort from the coordinator's point of view.
type RemoteClient interface {
	RecordingStatus(ctx context.Context) (bool, error)
	SetRecording(ctx context.Context, recording bool) error
}

// HTTPRemote talks to the companion recording server's REST flag.
type HTTPRemote struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type recordingFlag struct {
	Recording bool `json:"recording"`
}

func (c *HTTPRemote) RecordingStatus(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/recording", nil)
	if err != nil {
		return false, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status request failed: status %d", resp.StatusCode)
	}

	var flag recordingFlag
	if err := json.NewDecoder(resp.Body).Decode(&flag); err != nil {
		return false, fmt.Errorf("failed to decode status response: %w", err)
	}
	return flag.Recording, nil
}

func (c *HTTPRemote) SetRecording(ctx context.Context, recording bool) error {
	payload, err := json.Marshal(recordingFlag{Recording: recording})
	if err != nil {
		return fmt.Errorf("failed to encode recording flag: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recording", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build recording request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recording request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recording request failed: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
