package net

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GetJSON retrieves the HTTP content and decodes it into the passed target.
func GetJSON[T any](ctx context.Context, u string, target *T) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("error creating HTTP Get request: %w", err)
	}
	return doJSON(req, target)
}

// PostForm posts url encoded values and decodes the JSON response into target.
func PostForm[T any](ctx context.Context, u string, form url.Values, target *T) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error creating HTTP Post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(req, target)
}

func doJSON[T any](req *http.Request, target *T) error {
	c, err := GetHTTPClient()
	if err != nil {
		return fmt.Errorf("error creating HTTP client: %w", err)
	}

	req.Header.Set("User-Agent", clientAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req) //nolint:gosec // URL comes from config
	if err != nil {
		return fmt.Errorf("error executing %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()
	PrintHTTPResponse(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body := ""
		if b, err := io.ReadAll(io.LimitReader(resp.Body, 1024)); err == nil {
			body = string(b)
		}
		return fmt.Errorf("unexpected status %s from %s: %s", resp.Status, req.URL.Redacted(), body)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("error decoding content: %w", err)
	}
	return nil
}
