package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineServer(t *testing.T, detect http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if detect != nil {
		mux.HandleFunc("/v1/detect", detect)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHTTPEngineProbesSidecar(t *testing.T) {
	srv := engineServer(t, nil)
	engine, err := NewHTTPEngine(srv.URL)
	require.NoError(t, err)
	defer engine.Close()
}

func TestNewHTTPEngineFailsWhenUnreachable(t *testing.T) {
	_, err := NewHTTPEngine("http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestDetectFrame(t *testing.T) {
	srv := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]any{
			"hands": []map[string]any{
				{
					"landmarks":  []map[string]float64{{"x": 0.1, "y": 0.2, "z": 0.0}},
					"handedness": "Left",
					"score":      0.97,
				},
			},
		})
	})

	engine, err := NewHTTPEngine(srv.URL)
	require.NoError(t, err)
	defer engine.Close()

	res, err := engine.DetectFrame(context.Background(), []byte("jpeg"), 40*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, res.Hands, 1)
	assert.Equal(t, HandednessLeft, res.Hands[0].Handedness)
	assert.Equal(t, 40*time.Millisecond, res.Timestamp)
}

func TestDetectFrameErrorStatus(t *testing.T) {
	srv := engineServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model busy", http.StatusServiceUnavailable)
	})

	engine, err := NewHTTPEngine(srv.URL)
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.DetectFrame(context.Background(), []byte("jpeg"), 0)
	assert.ErrorContains(t, err, "status 503")
}
