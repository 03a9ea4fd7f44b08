package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Engine runs the hand landmark model. The Scheduler never overlaps two
// DetectFrame calls, but Configure may arrive while a DetectFrame is in
// flight; implementations must tolerate that.
type Engine interface {
	// DetectFrame runs the model on one encoded image and returns the
	// detected hand poses for it.
	DetectFrame(ctx context.Context, image []byte, ts time.Duration) (*Result, error)

	// Configure sets the maximum number of concurrently tracked hands.
	Configure(ctx context.Context, numHands int) error

	Close() error
}

// HTTPEngine talks to a landmark inference sidecar over HTTP. The sidecar
// accepts a JPEG frame and answers with the detected hand poses.
type HTTPEngine struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPEngine probes the sidecar before returning. A sidecar that cannot
// be reached means a permanently uninitialized engine for this process;
// callers construct a new engine to retry.
func NewHTTPEngine(baseURL string) (*HTTPEngine, error) {
	e := &HTTPEngine{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine probe request: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference engine unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference engine unhealthy: status %d", resp.StatusCode)
	}

	return e, nil
}

type detectResponse struct {
	Hands []HandPose `json:"hands"`
}

func (e *HTTPEngine) DetectFrame(ctx context.Context, image []byte, ts time.Duration) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/detect", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect failed: status %d: %s", resp.StatusCode, string(body))
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode detect response: %w", err)
	}

	return &Result{Hands: dr.Hands, Timestamp: ts}, nil
}

func (e *HTTPEngine) Configure(ctx context.Context, numHands int) error {
	payload, err := json.Marshal(map[string]int{"num_hands": numHands})
	if err != nil {
		return fmt.Errorf("failed to encode configure request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/configure", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build configure request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("configure request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("configure failed: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (e *HTTPEngine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}
