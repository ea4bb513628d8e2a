package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/use-agent/mapscout/models"
)

// apiClient talks to a running mapscout HTTP server.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	poll    time.Duration
}

// apiError is a structured error returned by the server.
type apiError struct {
	Status int
	Detail models.ErrorDetail
}

func (e *apiError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Detail.Code, e.Detail.Message)
}

// do sends a request to the API and decodes a 2xx JSON body into out.
func (a *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var failed models.ScrapeResponse
		if err := json.Unmarshal(raw, &failed); err == nil && failed.Error != nil {
			return &apiError{Status: resp.StatusCode, Detail: *failed.Error}
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// waitBatch polls a batch until every job has finished or ctx is done.
func (a *apiClient) waitBatch(ctx context.Context, id string) (models.BatchStatusResponse, error) {
	ticker := time.NewTicker(a.poll)
	defer ticker.Stop()

	for {
		var status models.BatchStatusResponse
		if err := a.do(ctx, http.MethodGet, "/api/v1/batches/"+id, nil, &status); err != nil {
			return status, err
		}
		if status.Status.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
