package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/models"
	"github.com/use-agent/mapscout/scraper"
)

type scrapeFlags struct {
	maxPlaces int
	lang      string
	headful   bool
	format    string
}

var scrapeOpts scrapeFlags

func init() {
	f := scrapeCmd.Flags()
	f.IntVarP(&scrapeOpts.maxPlaces, "max-places", "n", 0, "Maximum number of places to collect (default from MAPSCOUT_DEFAULT_MAX_PLACES).")
	f.StringVarP(&scrapeOpts.lang, "lang", "l", "", "Interface language, e.g. en or de (default from MAPSCOUT_DEFAULT_LANG).")
	f.BoolVar(&scrapeOpts.headful, "headful", false, "Show the browser window.")
	f.StringVarP(&scrapeOpts.format, "format", "f", "json", "Output format: json or table.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <query>",
	Short: "Searches Google Maps and prints the places found.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		logger := config.NewLogger(cfg.Log, os.Stderr)

		req := models.ScrapeRequest{
			Query:     strings.Join(args, " "),
			MaxPlaces: scrapeOpts.maxPlaces,
			Lang:      scrapeOpts.lang,
		}
		if scrapeOpts.headful {
			headless := false
			req.Headless = &headless
		}
		req.Defaults(cfg.Scraper.DefaultLang, cfg.Scraper.DefaultMaxPlaces, cfg.Browser.Headless)
		if err := req.Validate(cfg.Scraper.MaxPlacesLimit); err != nil {
			return err
		}
		if scrapeOpts.format != "json" && scrapeOpts.format != "table" {
			return fmt.Errorf("unknown format %q: use json or table", scrapeOpts.format)
		}

		sc := scraper.New(browser.NewRodLauncher(cfg.Browser), cfg.Scraper, scraper.WithLogger(logger))
		places := sc.Scrape(cmd.Context(), scraper.Query{
			Query:     req.Query,
			MaxPlaces: req.MaxPlaces,
			Lang:      req.Lang,
			Headless:  *req.Headless,
			Progress: func(done, total int) {
				logger.Info("visited place", "done", done, "total", total)
			},
		})

		return render(cmd.OutOrStdout(), req.Query, places, scrapeOpts.format)
	},
}

// render writes places as indented JSON or as a table.
func render(w io.Writer, query string, places []models.Place, format string) error {
	if format == "table" {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"#", "Name", "Rating", "Reviews", "Phone", "Address", "Website"})
		for i, p := range places {
			t.AppendRow(table.Row{
				i + 1,
				str(p.Name),
				num(p.Rating, "%.1f"),
				num(p.ReviewsCount, "%d"),
				str(p.Phone),
				str(p.Address),
				str(p.Website),
			})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d places", len(places))})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	}

	if places == nil {
		places = []models.Place{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(models.ScrapeResponse{
		Success: true,
		Query:   query,
		Count:   len(places),
		Places:  places,
	})
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func num[T int | float64](v *T, layout string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(layout, *v)
}
