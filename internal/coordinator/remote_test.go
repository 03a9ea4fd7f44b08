package coordinator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/recording", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]bool{"recording": true})
	}))
	defer srv.Close()

	c := NewHTTPRemote(srv.URL)
	recording, err := c.RecordingStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, recording)
}

func TestRecordingStatusServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPRemote(srv.URL)
	_, err := c.RecordingStatus(context.Background())
	assert.Error(t, err)
}

func TestRecordingStatusUnreachable(t *testing.T) {
	c := NewHTTPRemote("http://127.0.0.1:1")
	_, err := c.RecordingStatus(context.Background())
	assert.Error(t, err)
}

func TestSetRecording(t *testing.T) {
	var got recordingFlag
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPRemote(srv.URL)
	require.NoError(t, c.SetRecording(context.Background(), true))
	assert.True(t, got.Recording)
}

func TestSetRecordingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "already recording", http.StatusConflict)
	}))
	defer srv.Close()

	c := NewHTTPRemote(srv.URL)
	err := c.SetRecording(context.Background(), true)
	assert.ErrorContains(t, err, "status 409")
}
