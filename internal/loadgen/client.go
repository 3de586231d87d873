package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
)

// client is a small JSON client for the fairway API.
type client struct {
	http     *http.Client
	baseURL  string
	username string
	password string
}

func newClient(cfg *Config) *client {
	return &client{
		http:     &http.Client{Timeout: cfg.Timeout},
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
// It returns the status code and an error for transport or decode failures.
func (c *client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type clubsResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

type statsResponse struct {
	Catalog struct {
		Reviews int64 `json:"reviews"`
	} `json:"catalog"`
	QueueLength int `json:"queue_length"`
}

type recommendationsResponse struct {
	Results []struct {
		Rank              int     `json:"rank"`
		ItemID            string  `json:"item_id"`
		PersonalizedScore float64 `json:"personalized_score"`
		EvidenceCount     int     `json:"evidence_count"`
	} `json:"results"`
}
