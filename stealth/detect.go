package stealth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/mapscout/browser"
)

// detectionSignals are phrases found on block and challenge pages.
var detectionSignals = []string{
	"captcha",
	"unusual traffic",
	"automated queries",
	"robot",
	"suspicious activity",
	"verify you're human",
	"security check",
}

// challengeSelectors match the widgets of a challenge page regardless of
// its language.
const challengeSelectors = `iframe[src*="recaptcha"], form[action*="/sorry/"], #captcha-form, div.g-recaptcha`

// IsDetectionPage reports whether text contains any detection phrase,
// ignoring case.
func IsDetectionPage(text string) bool {
	lower := strings.ToLower(text)
	for _, s := range detectionSignals {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// CheckDetected reports whether the page currently shows a block or
// challenge page. Only visible text is classified so inline scripts do not
// trigger it. Any failure to read the page counts as not detected.
func CheckDetected(ctx context.Context, page browser.Page) bool {
	html, err := page.Content(ctx)
	if err != nil {
		slog.Debug("detection check: content unavailable", "error", err)
		return false
	}
	return IsDetectionHTML(html)
}

// IsDetectionHTML classifies a full HTML document.
func IsDetectionHTML(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return IsDetectionPage(html)
	}
	if doc.Find(challengeSelectors).Length() > 0 {
		return true
	}
	doc.Find("script, style, noscript, template").Remove()
	return IsDetectionPage(doc.Text())
}
