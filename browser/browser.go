// Package browser is the narrow automation capability the scraper and the
// stealth layer drive. Nothing outside this package imports a concrete
// automation library; RodLauncher is the production implementation and
// browsertest provides an in-memory one.
//
// Scripts passed to Evaluate are JavaScript function expressions taking no
// arguments, e.g. "() => document.title". Scripts passed to
// Locator.EvaluateAll take the matched elements as a single array argument,
// e.g. "els => els.map(e => e.href)".
package browser

import (
	"context"
	"time"

	"github.com/ysmood/gson"
)

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, headless bool) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	// NewContext opens an isolated context (separate cookies and storage).
	NewContext(ctx context.Context, opts ContextOptions) (Context, error)
	Close() error
}

// ContextOptions shape every page opened in a context.
type ContextOptions struct {
	// Locale is a BCP 47 tag such as "en-US".
	Locale       string
	UserAgent    string
	Viewport     Viewport
	ExtraHeaders map[string]string
}

// Viewport is the page size in CSS pixels. A zero value keeps the
// browser default.
type Viewport struct {
	Width  int
	Height int
}

// Context is an isolated browser context.
type Context interface {
	// NewPage opens a tab. Implementations may return a nil Page with a nil
	// error when the browser refuses to open one; callers must check.
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single tab.
type Page interface {
	// AddInitScript runs script in every document before its own scripts.
	AddInitScript(ctx context.Context, script string) error
	Goto(ctx context.Context, url string, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Content(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) (gson.JSON, error)
	// WaitForNetworkIdle returns nil once no request has been in flight
	// for a short quiet period, or an error when timeout elapses first.
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Mouse() Mouse
	Keyboard() Keyboard
	Locator(selector string) Locator
	Close() error
}

// Mouse moves and scrolls the pointer.
type Mouse interface {
	Move(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, dx, dy float64) error
}

// Key is a named non-printing key.
type Key string

const (
	KeyBackspace Key = "Backspace"
	KeyEnter     Key = "Enter"
)

// Keyboard types into the focused element.
type Keyboard interface {
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key Key) error
}

// Locator addresses every element matching a CSS selector at call time.
type Locator interface {
	Count(ctx context.Context) (int, error)
	EvaluateAll(ctx context.Context, script string) (gson.JSON, error)
	// Click clicks the first match, waiting for it to appear until ctx ends.
	Click(ctx context.Context) error
}
