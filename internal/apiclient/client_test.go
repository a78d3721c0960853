package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendsKeyAndDecodes(t *testing.T) {
	var gotKey, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"target_id":"abc","checks":10,"successes":8,"uptime_pct":80}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "k1")
	s, err := c.Stats(context.Background(), "abc", "7d")
	require.NoError(t, err)
	require.Equal(t, "k1", gotKey)
	require.Equal(t, "/api/targets/abc/stats", gotPath)
	require.Equal(t, "window=7d", gotQuery)
	require.Equal(t, 10, s.Checks)
	require.InDelta(t, 80.0, s.UptimePct, 1e-9)
}

func TestClient_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in TargetInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "ftp://x", in.URL)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid target","fields":{"url":"scheme must be http or https"}}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").AddTarget(context.Background(), TargetInput{URL: "ftp://x"})
	require.Error(t, err)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "scheme must be http or https", apiErr.Fields["url"])
	require.Contains(t, err.Error(), "invalid target")
}

func TestClient_RemoveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	err := New(srv.URL, "").RemoveTarget(context.Background(), "x")
	require.True(t, IsNotFound(err))
}

func TestClient_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	require.NoError(t, New(srv.URL, "").RemoveTarget(context.Background(), "x"))
}
