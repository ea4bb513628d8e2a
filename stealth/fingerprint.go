// Package stealth makes an automated browser session look like a person
// using a regular desktop Chrome. It also recognises the pages Google
// serves when it suspects automation.
package stealth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/use-agent/mapscout/browser"
)

// Fingerprint pools. One value of each is drawn per session.
var (
	UserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	}

	Viewports = []browser.Viewport{
		{Width: 1920, Height: 1080},
		{Width: 1536, Height: 864},
		{Width: 1440, Height: 900},
		{Width: 1366, Height: 768},
		{Width: 2560, Height: 1440},
	}

	Languages = []string{"en-US", "en-GB", "en", "en-CA", "en-AU"}

	CPUCores = []int{4, 6, 8, 12, 16}

	DeviceMemoryGB = []int{4, 8, 16, 32}
)

// Fingerprint is the set of browser signals presented for one session.
type Fingerprint struct {
	UserAgent string
	Viewport  browser.Viewport
	Language  string
	Cores     int
	MemoryGB  int
}

// NewFingerprint draws one value from each pool.
func NewFingerprint(rng *rand.Rand) Fingerprint {
	return Fingerprint{
		UserAgent: pick(rng, UserAgents),
		Viewport:  pick(rng, Viewports),
		Language:  pick(rng, Languages),
		Cores:     pick(rng, CPUCores),
		MemoryGB:  pick(rng, DeviceMemoryGB),
	}
}

func pick[T any](rng *rand.Rand, pool []T) T {
	return pool[rng.IntN(len(pool))]
}

// Platform returns the navigator.platform value matching the user agent.
func (f Fingerprint) Platform() string {
	switch {
	case strings.Contains(f.UserAgent, "Macintosh"):
		return "MacIntel"
	case strings.Contains(f.UserAgent, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

// ContextOptions returns the browser context settings for a session whose
// interface language is lang.
func (f Fingerprint) ContextOptions(lang string) browser.ContextOptions {
	return browser.ContextOptions{
		Locale:       lang,
		UserAgent:    f.UserAgent,
		Viewport:     f.Viewport,
		ExtraHeaders: ExtraHeaders(f, lang),
	}
}

// ExtraHeaders returns the request headers a regular Chrome would send.
// lang leads Accept-Language, followed by the fingerprint's language.
func ExtraHeaders(f Fingerprint, lang string) map[string]string {
	return map[string]string{
		"Accept-Language":           acceptLanguage(lang, f.Language),
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"DNT":                       "1",
		"Upgrade-Insecure-Requests": "1",
	}
}

// acceptLanguage lists lang, fpLang and en in that order, each tag once
// regardless of case, with falling q weights after the first.
func acceptLanguage(lang, fpLang string) string {
	if strings.EqualFold(lang, fpLang) {
		lang = fpLang
	}
	var tags []string
	for _, tag := range []string{lang, fpLang, "en"} {
		if tag == "" || slices.ContainsFunc(tags, func(t string) bool { return strings.EqualFold(t, tag) }) {
			continue
		}
		tags = append(tags, tag)
	}

	var b strings.Builder
	for i, tag := range tags {
		if i > 0 {
			fmt.Fprintf(&b, ",%s;q=%.1f", tag, 1-0.1*float64(i))
			continue
		}
		b.WriteString(tag)
	}
	return b.String()
}

// Apply registers the fingerprint patch on page. It must run before the
// first navigation.
func Apply(ctx context.Context, page browser.Page, f Fingerprint) error {
	if err := page.AddInitScript(ctx, f.Script()); err != nil {
		return fmt.Errorf("add fingerprint script: %w", err)
	}
	return nil
}

// Script returns the init script for f. Running it more than once in the
// same document is a no-op.
func (f Fingerprint) Script() string {
	return fmt.Sprintf(fingerprintJS, f.Cores, f.MemoryGB, strconv.Quote(f.Platform()))
}

// fingerprintJS takes cores, memory and the quoted platform string.
const fingerprintJS = `(() => {
	const mark = Symbol.for('fp.applied');
	if (window[mark]) return;
	Object.defineProperty(window, mark, { value: true });

	const define = (obj, prop, value) => {
		try {
			Object.defineProperty(obj, prop, { get: () => value, configurable: true });
		} catch (e) {}
	};

	define(navigator, 'webdriver', undefined);
	try { delete Object.getPrototypeOf(navigator).webdriver; } catch (e) {}

	for (const k of ['__playwright', '__pw_manual', '__PW_inspect', '__webdriver_evaluate', '__selenium_unwrapped', '__driver_evaluate', 'cdc_adoQpoasnfa76pfcZLmcfl_Array']) {
		try { delete window[k]; } catch (e) {}
	}

	define(navigator, 'hardwareConcurrency', %d);
	define(navigator, 'deviceMemory', %d);
	define(navigator, 'platform', %s);
	define(navigator, 'vendor', 'Google Inc.');

	const mimeTypes = [
		{ type: 'application/pdf', suffixes: 'pdf', description: 'Portable Document Format' },
		{ type: 'application/x-google-chrome-pdf', suffixes: 'pdf', description: 'Portable Document Format' },
		{ type: 'application/x-nacl', suffixes: '', description: 'Native Client Executable' },
	];
	const plugins = [
		{ 0: mimeTypes[1], description: 'Portable Document Format', filename: 'internal-pdf-viewer', length: 1, name: 'Chrome PDF Plugin' },
		{ 0: mimeTypes[0], description: '', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', length: 1, name: 'Chrome PDF Viewer' },
		{ 0: mimeTypes[2], description: 'Native Client Executable', filename: 'internal-nacl-plugin', length: 2, name: 'Native Client' },
	];
	define(navigator, 'plugins', plugins);
	define(navigator, 'mimeTypes', mimeTypes);

	window.chrome = window.chrome || {};
	try { delete window.chrome.runtime; } catch (e) {}
	window.chrome.app = window.chrome.app || {
		isInstalled: false,
		InstallState: { DISABLED: 'disabled', INSTALLED: 'installed', NOT_INSTALLED: 'not_installed' },
		RunningState: { CANNOT_RUN: 'cannot_run', READY_TO_RUN: 'ready_to_run', RUNNING: 'running' },
	};
	window.chrome.loadTimes = window.chrome.loadTimes || function () {
		const t = performance.timing;
		return {
			commitLoadTime: t.domContentLoadedEventStart / 1000,
			connectionInfo: 'h2',
			finishDocumentLoadTime: t.domContentLoadedEventEnd / 1000,
			finishLoadTime: t.loadEventEnd / 1000,
			firstPaintAfterLoadTime: 0,
			firstPaintTime: t.loadEventEnd / 1000,
			navigationType: 'Other',
			npnNegotiatedProtocol: 'h2',
			requestTime: t.fetchStart / 1000,
			startLoadTime: t.fetchStart / 1000,
			wasAlternateProtocolAvailable: false,
			wasFetchedViaSpdy: true,
			wasNpnNegotiated: true,
		};
	};

	if (navigator.permissions && navigator.permissions.query) {
		const originalQuery = navigator.permissions.query.bind(navigator.permissions);
		navigator.permissions.query = (parameters) => (
			parameters && parameters.name === 'notifications'
				? Promise.resolve({ state: Notification.permission === 'default' ? 'prompt' : Notification.permission, onchange: null })
				: originalQuery(parameters)
		);
	}
})();`
