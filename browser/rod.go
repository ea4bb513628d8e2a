package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/mapscout/config"
	"github.com/ysmood/gson"
)

// RodLauncher launches a fresh Chromium per Launch call via go-rod.
type RodLauncher struct {
	cfg config.BrowserConfig
}

// NewRodLauncher returns a launcher using cfg for every browser it starts.
// cfg.Headless is ignored: each Launch call decides.
func NewRodLauncher(cfg config.BrowserConfig) *RodLauncher {
	return &RodLauncher{cfg: cfg}
}

// Launch starts Chromium with automation-hiding flags and connects to it.
func (r *RodLauncher) Launch(ctx context.Context, headless bool) (Browser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(headless).
		NoSandbox(r.cfg.NoSandbox)

	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	if r.cfg.Proxy != "" {
		l = l.Proxy(r.cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-infobars"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL, "headless", headless)

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &rodBrowser{
		browser:  b,
		launcher: l,
		blocked:  r.cfg.BlockedResourceTypes,
	}, nil
}

type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	blocked  []string
}

func (b *rodBrowser) NewContext(ctx context.Context, opts ContextOptions) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Not bound to ctx: the context must still be closable after ctx ends.
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	return &rodContext{browser: incognito, opts: opts, blocked: b.blocked}, nil
}

// Close disconnects and kills the process, then removes its profile dir.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodContext struct {
	browser *rod.Browser
	opts    ContextOptions
	blocked []string
}

// NewPage opens a tab and applies the context options to it before any
// navigation: stealth.JS, user agent, locale, viewport, extra headers and
// resource blocking.
func (c *rodContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	if page == nil {
		return nil, nil
	}

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	if c.opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      c.opts.UserAgent,
			AcceptLanguage: c.opts.Locale,
		}); err != nil {
			slog.Debug("set user agent failed", "error", err)
		}
	}
	if c.opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: c.opts.Locale}).Call(page); err != nil {
			slog.Debug("set locale failed", "locale", c.opts.Locale, "error", err)
		}
	}
	if c.opts.Viewport.Width > 0 && c.opts.Viewport.Height > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             c.opts.Viewport.Width,
			Height:            c.opts.Viewport.Height,
			DeviceScaleFactor: 1,
		}); err != nil {
			slog.Debug("set viewport failed", "error", err)
		}
	}
	if len(c.opts.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(c.opts.ExtraHeaders),
		}).Call(page); err != nil {
			slog.Debug("set extra headers failed", "error", err)
		}
	}

	return &rodPage{page: page, router: setupHijack(page, c.blocked)}, nil
}

func (c *rodContext) Close() error {
	return c.browser.Close()
}

type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

// bind returns the page bound to ctx.
func (p *rodPage) bind(ctx context.Context) *rod.Page {
	return p.page.Context(ctx)
}

// bindTimeout is bind limited by timeout. The caller must call cancel.
func (p *rodPage) bindTimeout(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	tctx, cancel := withTimeout(ctx, timeout)
	return p.page.Context(tctx), cancel
}

// withTimeout derives a context ending after timeout, or only with ctx when
// timeout is not positive.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *rodPage) AddInitScript(ctx context.Context, script string) error {
	_, err := p.bind(ctx).EvalOnNewDocument(script)
	return err
}

func (p *rodPage) Goto(ctx context.Context, url string, timeout time.Duration) error {
	bound, cancel := p.bindTimeout(ctx, timeout)
	defer cancel()
	if err := bound.Navigate(url); err != nil {
		return err
	}
	return bound.WaitLoad()
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.bind(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	bound, cancel := p.bindTimeout(ctx, timeout)
	defer cancel()
	_, err := bound.Element(selector)
	return err
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	return p.bind(ctx).HTML()
}

func (p *rodPage) Evaluate(ctx context.Context, script string) (gson.JSON, error) {
	res, err := p.bind(ctx).Eval(script)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

// WaitForNetworkIdle uses WaitDOMStable while the hijack router is mounted:
// WaitRequestIdle relies on the Fetch domain, which the router already owns.
func (p *rodPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	bound, cancel := p.bindTimeout(ctx, timeout)
	defer cancel()
	if p.router != nil {
		return bound.WaitDOMStable(300*time.Millisecond, 0.1)
	}
	bound.WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return bound.GetContext().Err()
}

func (p *rodPage) Mouse() Mouse       { return rodMouse{page: p.page} }
func (p *rodPage) Keyboard() Keyboard { return rodKeyboard{page: p.page} }

func (p *rodPage) Locator(selector string) Locator {
	return rodLocator{page: p, selector: selector}
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// rod's Mouse and Keyboard are bound to the page's original context, so
// cancellation is checked before each call instead.
type rodMouse struct{ page *rod.Page }

func (m rodMouse) Move(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.page.Mouse.MoveTo(proto.Point{X: x, Y: y})
}

func (m rodMouse) Wheel(ctx context.Context, dx, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.page.Mouse.Scroll(dx, dy, 0)
}

type rodKeyboard struct{ page *rod.Page }

func (k rodKeyboard) Type(ctx context.Context, text string) error {
	return k.page.Context(ctx).InsertText(text)
}

var rodKeys = map[Key]input.Key{
	KeyBackspace: input.Backspace,
	KeyEnter:     input.Enter,
}

func (k rodKeyboard) Press(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rk, ok := rodKeys[key]
	if !ok {
		return fmt.Errorf("unsupported key %q", key)
	}
	return k.page.Keyboard.Press(rk)
}

type rodLocator struct {
	page     *rodPage
	selector string
}

func (l rodLocator) Count(ctx context.Context) (int, error) {
	res, err := l.page.bind(ctx).Eval(`sel => document.querySelectorAll(sel).length`, l.selector)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (l rodLocator) EvaluateAll(ctx context.Context, script string) (gson.JSON, error) {
	js := fmt.Sprintf(`sel => (%s)(Array.from(document.querySelectorAll(sel)))`, script)
	res, err := l.page.bind(ctx).Eval(js, l.selector)
	if err != nil {
		return gson.New(nil), err
	}
	return res.Value, nil
}

func (l rodLocator) Click(ctx context.Context) error {
	el, err := l.page.bind(ctx).Element(l.selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", l.selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
