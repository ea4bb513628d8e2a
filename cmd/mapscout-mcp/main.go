package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("MAPSCOUT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8001"
	}
	apiKey := os.Getenv("MAPSCOUT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "MAPSCOUT_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(&apiClient{
		baseURL: apiURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Minute},
		poll:    2 * time.Second,
	})

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newServer registers every tool against api.
func newServer(api *apiClient) *server.MCPServer {
	s := server.NewMCPServer(
		"mapscout",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	scrapeTool := mcp.NewTool("scrape_places",
		mcp.WithDescription("Search Google Maps and return the matching places with name, address, phone, website, rating, review count, categories and coordinates. Runs a real browser, so large searches can take minutes."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text Maps search, e.g. 'coffee shops in Lisbon'"),
		),
		mcp.WithNumber("max_places",
			mcp.Description("Maximum number of places to return (default: 20)"),
		),
		mcp.WithString("lang",
			mcp.Description("Interface language code such as 'en' or 'de' (default: 'en')"),
		),
	)
	s.AddTool(scrapeTool, handleScrapePlaces(api))

	asyncTool := mcp.NewTool("scrape_places_async",
		mcp.WithDescription("Start a Google Maps search in the background and return a job ID. Use job_status to fetch the results."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text Maps search"),
		),
		mcp.WithNumber("max_places",
			mcp.Description("Maximum number of places to return (default: 20)"),
		),
		mcp.WithString("lang",
			mcp.Description("Interface language code (default: 'en')"),
		),
	)
	s.AddTool(asyncTool, handleScrapeAsync(api))

	statusTool := mcp.NewTool("job_status",
		mcp.WithDescription("Fetch the status, progress and (once finished) the places of a background search."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by scrape_places_async"),
		),
	)
	s.AddTool(statusTool, handleJobStatus(api))

	batchTool := mcp.NewTool("batch_scrape_places",
		mcp.WithDescription("Run several Google Maps searches and wait for all of them. Each query becomes its own job."),
		mcp.WithArray("queries",
			mcp.Required(),
			mcp.Description("List of free-text Maps searches"),
		),
		mcp.WithNumber("max_places",
			mcp.Description("Maximum number of places per query (default: 20)"),
		),
		mcp.WithString("lang",
			mcp.Description("Interface language code (default: 'en')"),
		),
	)
	s.AddTool(batchTool, handleBatchScrape(api))

	return s
}
