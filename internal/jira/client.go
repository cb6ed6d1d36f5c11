// Package jira is a minimal REST client for the issue tracker: fetch an
// issue's summary and description, post a comment. Failures carry the HTTP
// status and response body so callers can log the tracker's own message.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
}

type Client struct {
	baseURL  string
	username string
	apiToken string
	http     *http.Client
}

func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *Client) GetIssue(ctx context.Context, key string) (Issue, error) {
	if strings.TrimSpace(key) == "" {
		return Issue{}, fmt.Errorf("issue key is required")
	}
	blob, err := c.doJSON(ctx, http.MethodGet, "/rest/api/2/issue/"+key, nil)
	if err != nil {
		return Issue{}, fmt.Errorf("get issue %s: %w", key, err)
	}

	var resp struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
			Status      struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(blob, &resp); err != nil {
		return Issue{}, fmt.Errorf("decode issue %s: %w", key, err)
	}
	return Issue{
		Key:         resp.Key,
		Summary:     resp.Fields.Summary,
		Description: resp.Fields.Description,
		Status:      resp.Fields.Status.Name,
	}, nil
}

func (c *Client) AddComment(ctx context.Context, key, body string) error {
	payload, _ := json.Marshal(map[string]string{"body": body})
	if _, err := c.doJSON(ctx, http.MethodPost, "/rest/api/2/issue/"+key+"/comment", payload); err != nil {
		return fmt.Errorf("add comment to %s: %w", key, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.username, c.apiToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	blob, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return blob, fmt.Errorf("%s %s failed status=%d body=%s", method, path, resp.StatusCode, string(blob))
	}
	return blob, nil
}
