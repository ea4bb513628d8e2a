package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/mapscout/models"
)

func scrapeRequestFrom(request mcp.CallToolRequest) (models.ScrapeRequest, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return models.ScrapeRequest{}, fmt.Errorf("query is required")
	}
	return models.ScrapeRequest{
		Query:     query,
		MaxPlaces: request.GetInt("max_places", 0),
		Lang:      request.GetString("lang", ""),
	}, nil
}

func handleScrapePlaces(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := scrapeRequestFrom(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.ScrapeResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/scrape", req, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scrape failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d places for %q\n\n", resp.Count, resp.Query)
		writePlaces(&sb, resp.Places)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScrapeAsync(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := scrapeRequestFrom(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.AsyncResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/scrape/async", req, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("submit failed: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Job %s is %s. Call job_status with this job_id to get the places.", resp.JobID, resp.Status)), nil
	}
}

func handleJobStatus(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		var job models.JobResponse
		if err := api.do(ctx, http.MethodGet, "/api/v1/jobs/"+id, nil, &job); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("status lookup failed: %v", err)), nil
		}

		var sb strings.Builder
		writeJob(&sb, job)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleBatchScrape(api *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queries, err := request.RequireStringSlice("queries")
		if err != nil || len(queries) == 0 {
			return mcp.NewToolResultError("queries is required and must be an array of strings"), nil
		}

		payload := models.BatchRequest{
			Queries:   queries,
			MaxPlaces: request.GetInt("max_places", 0),
			Lang:      request.GetString("lang", ""),
		}
		var batch models.BatchResponse
		if err := api.do(ctx, http.MethodPost, "/api/v1/scrape/batch", payload, &batch); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		status, err := api.waitBatch(ctx, batch.BatchID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch %s failed: %v", batch.BatchID, err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d completed, %d failed of %d)\n\n",
			status.ID, status.Status, status.Completed, status.Failed, status.Total)
		for _, job := range status.Jobs {
			writeJob(&sb, job)
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func writeJob(sb *strings.Builder, job models.JobResponse) {
	fmt.Fprintf(sb, "--- Job %s %q: %s (%d/%d visited) ---\n",
		job.ID, job.Query, job.Status, job.Progress.Done, job.Progress.Total)
	if job.Error != nil {
		fmt.Fprintf(sb, "FAILED: [%s] %s\n", job.Error.Code, job.Error.Message)
	}
	if job.Status.Terminal() {
		writePlaces(sb, job.Places)
	}
}

// writePlaces renders one line per place, skipping absent fields.
func writePlaces(sb *strings.Builder, places []models.Place) {
	if len(places) == 0 {
		sb.WriteString("No places found.\n")
		return
	}
	for i, p := range places {
		parts := []string{deref(p.Name, "(unnamed)")}
		if p.Rating != nil {
			rating := fmt.Sprintf("%.1f★", *p.Rating)
			if p.ReviewsCount != nil {
				rating += fmt.Sprintf(" (%d reviews)", *p.ReviewsCount)
			}
			parts = append(parts, rating)
		}
		if len(p.Categories) > 0 {
			parts = append(parts, strings.Join(p.Categories, ", "))
		}
		if p.Address != nil {
			parts = append(parts, *p.Address)
		}
		if p.Phone != nil {
			parts = append(parts, "tel +"+*p.Phone)
		}
		if p.Website != nil {
			parts = append(parts, *p.Website)
		}
		if p.Coordinates != nil {
			parts = append(parts, fmt.Sprintf("%.6f,%.6f", p.Coordinates.Latitude, p.Coordinates.Longitude))
		}
		fmt.Fprintf(sb, "%d. %s\n", i+1, strings.Join(parts, " | "))
	}
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
