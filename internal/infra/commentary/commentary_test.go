package infra_commentary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentOn(t *testing.T) {
	t.Parallel()

	var gotPath, gotURL, gotDescription string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			URL         string `json:"url"`
			Description string `json:"description"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotURL = req.URL
		gotDescription = req.Description

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "a thoughtful take"})
	}))
	defer srv.Close()

	client := New(srv.URL)
	text, err := client.CommentOn(context.Background(), "https://example.com", "my link")

	require.NoError(t, err)
	assert.Equal(t, "a thoughtful take", text)
	assert.Equal(t, "/comment", gotPath)
	assert.Equal(t, "https://example.com", gotURL)
	assert.Equal(t, "my link", gotDescription)
}

func TestCommentOnServiceError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL)
	_, err := client.CommentOn(context.Background(), "https://example.com", "")

	assert.Error(t, err)
}

func TestCommentOnUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	client := New(srv.URL)
	_, err := client.CommentOn(context.Background(), "https://example.com", "")

	assert.Error(t, err)
}
