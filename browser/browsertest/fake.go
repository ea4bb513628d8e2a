// Package browsertest provides an in-memory browser.Launcher for tests.
//
// A test configures one Page up front and hands the Launcher to the code
// under test; afterwards it inspects what was recorded on the Launcher,
// its Browsers and Contexts, and the Page.
package browsertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/use-agent/mapscout/browser"
	"github.com/ysmood/gson"
)

// ErrTimeout is returned by waits on selectors that are not Present.
var ErrTimeout = errors.New("browsertest: wait timed out")

// Launcher is a fake browser.Launcher. Every Browser it launches opens
// contexts that all hand out the same Page.
type Launcher struct {
	Page *Page

	LaunchErr  error
	ContextErr error
	PageErr    error
	// NilPage makes NewPage return (nil, nil).
	NilPage bool

	mu       sync.Mutex
	headless []bool
	browsers []*Browser
}

func (l *Launcher) Launch(ctx context.Context, headless bool) (browser.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.headless = append(l.headless, headless)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}
	b := &Browser{launcher: l}
	l.browsers = append(l.browsers, b)
	return b, nil
}

// Headless returns the headless flag of every Launch call in order.
func (l *Launcher) Headless() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.headless...)
}

// Browsers returns every launched browser in order.
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// Browser is a fake browser.Browser.
type Browser struct {
	launcher *Launcher

	mu       sync.Mutex
	contexts []*Context
	closed   int
}

func (b *Browser) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	if b.launcher.ContextErr != nil {
		return nil, b.launcher.ContextErr
	}
	c := &Context{launcher: b.launcher, Options: opts}
	b.mu.Lock()
	b.contexts = append(b.contexts, c)
	b.mu.Unlock()
	return c, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

// Closed returns how many times Close was called.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Contexts returns every context opened on b.
func (b *Browser) Contexts() []*Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Context(nil), b.contexts...)
}

// Context is a fake browser.Context.
type Context struct {
	Options browser.ContextOptions

	launcher *Launcher
	mu       sync.Mutex
	closed   int
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if c.launcher.PageErr != nil {
		return nil, c.launcher.PageErr
	}
	if c.launcher.NilPage || c.launcher.Page == nil {
		return nil, nil
	}
	return c.launcher.Page, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

// Closed returns how many times Close was called.
func (c *Context) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Page is a scripted browser.Page. Configure the exported behavior fields
// before use; the recorded fields are safe to read once the code under
// test has returned.
type Page struct {
	// Redirects maps a requested URL to the URL the page ends up on.
	Redirects map[string]string
	// HTML maps a final URL to its content.
	HTML map[string]string
	// Present lists selectors that WaitForSelector and Click find.
	Present map[string]bool
	// Results holds successive EvaluateAll results per selector. The last
	// entry repeats once exhausted; a selector with no entries yields [].
	Results map[string][]any
	// Counts holds successive Count results per selector, last repeating.
	// Without an entry Count is 1 for Present selectors and 0 otherwise.
	Counts map[string][]int
	// EvaluateFunc answers Evaluate; nil answers null.
	EvaluateFunc func(script string) (any, error)

	GotoErr     func(url string) error
	ContentErr  error
	IdleErr     error
	EvaluateErr error
	ResultsErr  map[string]error
	InitErr     error

	mu          sync.Mutex
	url         string
	visited     []string
	initScripts []string
	evaluated   []string
	typed       []string
	pressed     []browser.Key
	keyEvents   []string
	moves       int
	wheels      []float64
	clicks      []string
	resultCalls map[string]int
	countCalls  map[string]int
	closed      int
}

func (p *Page) AddInitScript(ctx context.Context, script string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.InitErr != nil {
		return p.InitErr
	}
	p.initScripts = append(p.initScripts, script)
	return nil
}

func (p *Page) Goto(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visited = append(p.visited, url)
	if p.GotoErr != nil {
		if err := p.GotoErr(url); err != nil {
			return err
		}
	}
	if final, ok := p.Redirects[url]; ok {
		p.url = final
	} else {
		p.url = url
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Present[selector] {
		return nil
	}
	return ErrTimeout
}

func (p *Page) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ContentErr != nil {
		return "", p.ContentErr
	}
	return p.HTML[p.url], nil
}

func (p *Page) Evaluate(ctx context.Context, script string) (gson.JSON, error) {
	p.mu.Lock()
	p.evaluated = append(p.evaluated, script)
	fn, evalErr := p.EvaluateFunc, p.EvaluateErr
	p.mu.Unlock()

	if evalErr != nil {
		return gson.New(nil), evalErr
	}
	if fn == nil {
		return gson.New(nil), nil
	}
	v, err := fn(script)
	return gson.New(v), err
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.IdleErr
}

func (p *Page) Mouse() browser.Mouse       { return fakeMouse{p} }
func (p *Page) Keyboard() browser.Keyboard { return fakeKeyboard{p} }

func (p *Page) Locator(selector string) browser.Locator {
	return fakeLocator{page: p, selector: selector}
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Visited returns every URL passed to Goto in order.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// InitScripts returns every script passed to AddInitScript.
func (p *Page) InitScripts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.initScripts...)
}

// Evaluated returns every script passed to Evaluate.
func (p *Page) Evaluated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.evaluated...)
}

// Typed returns every Keyboard.Type argument in order.
func (p *Page) Typed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.typed...)
}

// Pressed returns every Keyboard.Press argument in order.
func (p *Page) Pressed() []browser.Key {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Key(nil), p.pressed...)
}

// KeyEvents returns keyboard calls in order as "type:<text>" or
// "press:<key>".
func (p *Page) KeyEvents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keyEvents...)
}

// Moves returns how many Mouse.Move calls were made.
func (p *Page) Moves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.moves
}

// Wheels returns the vertical delta of every Mouse.Wheel call.
func (p *Page) Wheels() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.wheels...)
}

// Clicks returns the selector of every successful Locator.Click.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// ResultCalls returns how many times EvaluateAll ran for selector.
func (p *Page) ResultCalls(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resultCalls[selector]
}

// Closed returns how many times Close was called.
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeMouse struct{ p *Page }

func (m fakeMouse) Move(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.moves++
	return nil
}

func (m fakeMouse) Wheel(ctx context.Context, dx, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.wheels = append(m.p.wheels, dy)
	return nil
}

type fakeKeyboard struct{ p *Page }

func (k fakeKeyboard) Type(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.p.mu.Lock()
	defer k.p.mu.Unlock()
	k.p.typed = append(k.p.typed, text)
	k.p.keyEvents = append(k.p.keyEvents, "type:"+text)
	return nil
}

func (k fakeKeyboard) Press(ctx context.Context, key browser.Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k.p.mu.Lock()
	defer k.p.mu.Unlock()
	k.p.pressed = append(k.p.pressed, key)
	k.p.keyEvents = append(k.p.keyEvents, "press:"+string(key))
	return nil
}

type fakeLocator struct {
	page     *Page
	selector string
}

func (l fakeLocator) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()

	counts, ok := p.Counts[l.selector]
	if !ok || len(counts) == 0 {
		if p.Present[l.selector] {
			return 1, nil
		}
		return 0, nil
	}
	if p.countCalls == nil {
		p.countCalls = make(map[string]int)
	}
	i := min(p.countCalls[l.selector], len(counts)-1)
	p.countCalls[l.selector]++
	return counts[i], nil
}

func (l fakeLocator) EvaluateAll(ctx context.Context, script string) (gson.JSON, error) {
	if err := ctx.Err(); err != nil {
		return gson.New(nil), err
	}
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resultCalls == nil {
		p.resultCalls = make(map[string]int)
	}
	call := p.resultCalls[l.selector]
	p.resultCalls[l.selector]++

	if err := p.ResultsErr[l.selector]; err != nil {
		return gson.New(nil), err
	}
	results := p.Results[l.selector]
	if len(results) == 0 {
		return gson.New([]any{}), nil
	}
	return gson.New(results[min(call, len(results)-1)]), nil
}

func (l fakeLocator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Present[l.selector] {
		return ErrTimeout
	}
	p.clicks = append(p.clicks, l.selector)
	return nil
}
