package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/use-agent/mapscout/models"
)

// CLI flags
var (
	apiURL    = flag.String("api-url", "http://localhost:8001", "Mapscout API base URL")
	apiKey    = flag.String("api-key", "", "API key for authenticated requests")
	runs      = flag.Int("runs", 3, "Number of runs per query for averaging")
	maxPlaces = flag.Int("max-places", 10, "max_places sent with every query")
	output    = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Queries covering dense, sparse and non-English listings.
var testQueries = []struct {
	Label string
	Query string
	Lang  string
}{
	{"Dense city", "coffee shops in Manhattan", "en"},
	{"Small town", "bakery in Hallstatt", "en"},
	{"Single place", "Eiffel Tower", "en"},
	{"German", "Apotheke in Berlin Mitte", "de"},
	{"Services", "plumbers in Austin TX", "en"},
}

// --- Benchmark result types ---

type runResult struct {
	Run     int     `json:"run"`
	TotalMs int64   `json:"total_ms"`
	Count   int     `json:"count"`
	Fields  fieldPc `json:"fields"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
}

// fieldPc is the share of places carrying each optional field, in percent.
type fieldPc struct {
	Address     float64 `json:"address"`
	Phone       float64 `json:"phone"`
	Website     float64 `json:"website"`
	Rating      float64 `json:"rating"`
	Coordinates float64 `json:"coordinates"`
}

type queryAverages struct {
	TotalMs float64 `json:"total_ms"`
	Count   float64 `json:"count"`
	Fields  fieldPc `json:"fields"`
}

type queryResult struct {
	Query    string         `json:"query"`
	Label    string         `json:"label"`
	Runs     []runResult    `json:"runs"`
	Averages *queryAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerQuery int           `json:"runs_per_query"`
	MaxPlaces    int           `json:"max_places"`
	Results      []queryResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Mapscout Benchmark Suite ===")
	fmt.Printf("API URL:    %s\n", *apiURL)
	fmt.Printf("Runs/query: %d\n", *runs)
	fmt.Printf("Output:     %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure mapscout is running (go run ./cmd/mapscout)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerQuery: *runs,
		MaxPlaces:    *maxPlaces,
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	for _, q := range testQueries {
		fmt.Printf("Benchmarking [%s] %q ...\n", q.Label, q.Query)
		qr := queryResult{Query: q.Query, Label: q.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkQuery(client, q.Query, q.Lang, i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d places\n", rr.TotalMs, rr.Count)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			qr.Runs = append(qr.Runs, rr)
		}

		qr.Averages = computeAverages(qr.Runs)
		report.Results = append(report.Results, qr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// benchmarkQuery runs one uncached scrape.
func benchmarkQuery(client *http.Client, query, lang string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(models.ScrapeRequest{
		Query:     query,
		MaxPlaces: *maxPlaces,
		Lang:      lang,
		NoCache:   true,
	})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/api/v1/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var sr models.ScrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = sr.Success
	rr.TotalMs = sr.Timing.TotalMs
	rr.Count = sr.Count
	rr.Fields = completeness(sr.Places)
	if sr.Error != nil {
		rr.Error = sr.Error.Message
	}
	return rr
}

func completeness(places []models.Place) fieldPc {
	if len(places) == 0 {
		return fieldPc{}
	}
	var f fieldPc
	for _, p := range places {
		if p.Address != nil {
			f.Address++
		}
		if p.Phone != nil {
			f.Phone++
		}
		if p.Website != nil {
			f.Website++
		}
		if p.Rating != nil {
			f.Rating++
		}
		if p.Coordinates != nil {
			f.Coordinates++
		}
	}
	n := float64(len(places)) / 100
	return fieldPc{
		Address:     f.Address / n,
		Phone:       f.Phone / n,
		Website:     f.Website / n,
		Rating:      f.Rating / n,
		Coordinates: f.Coordinates / n,
	}
}

func computeAverages(runs []runResult) *queryAverages {
	var successCount int
	var avg queryAverages

	for _, r := range runs {
		if !r.Success {
			continue
		}
		successCount++
		avg.TotalMs += float64(r.TotalMs)
		avg.Count += float64(r.Count)
		avg.Fields.Address += r.Fields.Address
		avg.Fields.Phone += r.Fields.Phone
		avg.Fields.Website += r.Fields.Website
		avg.Fields.Rating += r.Fields.Rating
		avg.Fields.Coordinates += r.Fields.Coordinates
	}

	if successCount == 0 {
		return nil
	}

	n := float64(successCount)
	avg.TotalMs /= n
	avg.Count /= n
	avg.Fields.Address /= n
	avg.Fields.Phone /= n
	avg.Fields.Website /= n
	avg.Fields.Rating /= n
	avg.Fields.Coordinates /= n
	return &avg
}

func printTable(results []queryResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Query", "Avg Latency", "Places", "Address", "Phone", "Website", "Rating", "Coords"})

	for _, r := range results {
		if r.Averages == nil {
			t.AppendRow(table.Row{r.Label, "FAILED", "-", "-", "-", "-", "-", "-"})
			continue
		}
		a := r.Averages
		t.AppendRow(table.Row{
			r.Label,
			fmt.Sprintf("%dms", int64(a.TotalMs)),
			fmt.Sprintf("%.1f", a.Count),
			pct(a.Fields.Address),
			pct(a.Fields.Phone),
			pct(a.Fields.Website),
			pct(a.Fields.Rating),
			pct(a.Fields.Coordinates),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func pct(v float64) string { return fmt.Sprintf("%.0f%%", v) }

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
