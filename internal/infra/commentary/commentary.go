// Package infra_commentary calls the external commentary service. The
// engine treats it as an opaque, fallible collaborator: one request, no
// retries, and any failure surfaces as a plain error for the usecase to
// translate.
package infra_commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type commentRequest struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type commentResponse struct {
	Text string `json:"text"`
}

func (c *Client) CommentOn(ctx context.Context, url, description string) (string, error) {
	body, err := json.Marshal(commentRequest{URL: url, Description: description})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/comment", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("commentary service returned %d", resp.StatusCode)
	}

	var out commentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Text, nil
}
