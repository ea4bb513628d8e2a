package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/use-agent/mapscout/models"
)

func ptr[T any](v T) *T { return &v }

func fakeAPI(t *testing.T) (*apiClient, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/scrape", func(w http.ResponseWriter, r *http.Request) {
		var req models.ScrapeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.MaxPlaces != 5 || req.Lang != "pt" {
			t.Errorf("request = %+v", req)
		}
		writeJSON(w, http.StatusOK, models.ScrapeResponse{
			Success: true,
			Query:   req.Query,
			Count:   1,
			Places: []models.Place{{
				Name:         ptr("Cafe A"),
				Rating:       ptr(4.5),
				ReviewsCount: ptr(120),
				Phone:        ptr("351210000000"),
				Coordinates:  &models.Coordinates{Latitude: 38.7, Longitude: -9.1},
			}},
		})
	})
	mux.HandleFunc("POST /api/v1/scrape/async", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, models.AsyncResponse{JobID: "job_1", Status: models.JobPending})
	})
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job_1" {
			writeJSON(w, http.StatusNotFound, models.ScrapeResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "job not found"},
			})
			return
		}
		writeJSON(w, http.StatusOK, models.JobResponse{
			ID: "job_1", Query: "q", Status: models.JobCompleted,
			Progress: models.Progress{Done: 1, Total: 1},
			Count:    1, Places: []models.Place{{Name: ptr("Only")}},
		})
	})
	mux.HandleFunc("POST /api/v1/scrape/batch", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, models.BatchResponse{BatchID: "batch_1", JobIDs: []string{"job_a"}, Total: 1})
	})
	mux.HandleFunc("GET /api/v1/batches/{id}", func(w http.ResponseWriter, r *http.Request) {
		status := models.JobProcessing
		if polls.Add(1) >= 2 {
			status = models.JobCompleted
		}
		writeJSON(w, http.StatusOK, models.BatchStatusResponse{
			ID: "batch_1", Status: status, Total: 1, Completed: 1,
			Jobs: []models.JobResponse{{ID: "job_a", Query: "a", Status: models.JobCompleted, Places: []models.Place{}}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &apiClient{baseURL: srv.URL, apiKey: "k", http: srv.Client(), poll: time.Millisecond}, &polls
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestScrapePlacesTool(t *testing.T) {
	api, _ := fakeAPI(t)
	text, isErr := call(t, handleScrapePlaces(api), map[string]any{
		"query": "cafes", "max_places": float64(5), "lang": "pt",
	})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	for _, want := range []string{`Found 1 places for "cafes"`, "1. Cafe A | 4.5★ (120 reviews)", "tel +351210000000", "38.700000,-9.100000"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestScrapePlacesNeedsQuery(t *testing.T) {
	api, _ := fakeAPI(t)
	if _, isErr := call(t, handleScrapePlaces(api), map[string]any{}); !isErr {
		t.Error("missing query accepted")
	}
}

func TestAsyncAndStatusTools(t *testing.T) {
	api, _ := fakeAPI(t)

	text, isErr := call(t, handleScrapeAsync(api), map[string]any{"query": "q"})
	if isErr || !strings.Contains(text, "job_1") {
		t.Errorf("async = %q (error %v)", text, isErr)
	}

	text, isErr = call(t, handleJobStatus(api), map[string]any{"job_id": "job_1"})
	if isErr || !strings.Contains(text, "completed (1/1 visited)") || !strings.Contains(text, "1. Only") {
		t.Errorf("status = %q (error %v)", text, isErr)
	}

	text, isErr = call(t, handleJobStatus(api), map[string]any{"job_id": "job_x"})
	if !isErr || !strings.Contains(text, "[NOT_FOUND] job not found") {
		t.Errorf("unknown job = %q (error %v)", text, isErr)
	}
}

func TestBatchToolPollsUntilDone(t *testing.T) {
	api, polls := fakeAPI(t)
	text, isErr := call(t, handleBatchScrape(api), map[string]any{"queries": []any{"a"}})
	if isErr {
		t.Fatalf("tool error: %s", text)
	}
	if polls.Load() < 2 {
		t.Errorf("polls = %d, want at least 2", polls.Load())
	}
	if !strings.Contains(text, "Batch batch_1: completed") || !strings.Contains(text, "No places found.") {
		t.Errorf("output:\n%s", text)
	}
}
