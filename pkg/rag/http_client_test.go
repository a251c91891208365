package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientQueryJoinsChunkResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/retrieval/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "how do I authenticate?", req.Query)

		w.Header().Set("Content-Type", "application/json")
		resp := searchResponse{}
		resp.Results.ChunkSearchResults = []searchResult{
			{Text: "use the /login endpoint"},
			{Text: "tokens expire after 1 hour"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0, 0)
	out, err := c.Query(context.Background(), "how do I authenticate?")
	require.NoError(t, err)
	assert.Contains(t, out, "use the /login endpoint")
	assert.Contains(t, out, "tokens expire after 1 hour")
}

func TestHTTPClientQueryReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 0, 0)
	_, err := c.Query(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPClientQueryRespectsRateLimiterCancellation(t *testing.T) {
	c := NewHTTPClient("http://example.invalid", 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Query(ctx, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}
