package stealth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/use-agent/mapscout/browser"
)

// typoRate is the per-character chance of typing a wrong letter first.
const typoRate = 0.05

// SleepFunc pauses for d or until ctx ends, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Point is a position in CSS pixels.
type Point struct {
	X, Y float64
}

// Humanizer paces and jitters input for one session. It remembers the last
// pointer position so consecutive moves start where the previous one ended.
type Humanizer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
	pos   Point
}

// NewHumanizer returns a Humanizer drawing from rng and pausing with sleep.
// A nil sleep uses Sleep.
func NewHumanizer(rng *rand.Rand, sleep SleepFunc) *Humanizer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Humanizer{rng: rng, sleep: sleep}
}

func (h *Humanizer) float(lo, hi float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + h.rng.Float64()*(hi-lo)
}

func (h *Humanizer) intRange(lo, hi int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return lo + h.rng.IntN(hi-lo+1)
}

func (h *Humanizer) chance(p float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rng.Float64() < p
}

// Between returns a uniformly random duration in [lo, hi].
func (h *Humanizer) Between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return time.Duration(h.float(float64(lo), float64(hi)))
}

// Delay pauses for a uniformly random duration in [lo, hi].
func (h *Humanizer) Delay(ctx context.Context, lo, hi time.Duration) error {
	return h.sleep(ctx, h.Between(lo, hi))
}

// Pause pauses for exactly d.
func (h *Humanizer) Pause(ctx context.Context, d time.Duration) error {
	return h.sleep(ctx, d)
}

// MoveMouse moves the pointer to target in steps straight-line increments,
// each offset by up to 5px of jitter in both axes.
func (h *Humanizer) MoveMouse(ctx context.Context, page browser.Page, target Point, steps int) error {
	if steps < 1 {
		steps = 1
	}
	h.mu.Lock()
	start := h.pos
	h.mu.Unlock()

	mouse := page.Mouse()
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := start.X + (target.X-start.X)*t + h.float(-5, 5)
		y := start.Y + (target.Y-start.Y)*t + h.float(-5, 5)
		if err := mouse.Move(ctx, x, y); err != nil {
			return fmt.Errorf("mouse move: %w", err)
		}
		if err := h.Delay(ctx, 10*time.Millisecond, 30*time.Millisecond); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.pos = target
	h.mu.Unlock()
	return nil
}

// HumanType clicks selector and types text one character at a time with
// uneven gaps. About one character in twenty is preceded by a wrong letter
// that is then deleted with Backspace.
func (h *Humanizer) HumanType(ctx context.Context, page browser.Page, selector, text string) error {
	if err := page.Locator(selector).Click(ctx); err != nil {
		return fmt.Errorf("focus %q: %w", selector, err)
	}
	if err := h.Delay(ctx, 100*time.Millisecond, 300*time.Millisecond); err != nil {
		return err
	}

	kb := page.Keyboard()
	for _, r := range text {
		if h.chance(typoRate) {
			wrong := string(rune('a' + h.intRange(0, 25)))
			if err := kb.Type(ctx, wrong); err != nil {
				return fmt.Errorf("type: %w", err)
			}
			if err := h.Delay(ctx, 100*time.Millisecond, 200*time.Millisecond); err != nil {
				return err
			}
			if err := kb.Press(ctx, browser.KeyBackspace); err != nil {
				return fmt.Errorf("press backspace: %w", err)
			}
			if err := h.Delay(ctx, 50*time.Millisecond, 100*time.Millisecond); err != nil {
				return err
			}
		}
		if err := kb.Type(ctx, string(r)); err != nil {
			return fmt.Errorf("type: %w", err)
		}
		if err := h.Delay(ctx, 50*time.Millisecond, 150*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

// Scroll wheels the page down by a random distance between 100 and
// maxDistance pixels, split over 5 to 15 steps.
func (h *Humanizer) Scroll(ctx context.Context, page browser.Page, maxDistance int) error {
	if maxDistance < 100 {
		maxDistance = 100
	}
	distance := h.intRange(100, maxDistance)
	steps := h.intRange(5, 15)
	step := float64(distance / steps)

	mouse := page.Mouse()
	for range steps {
		if err := mouse.Wheel(ctx, 0, step); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := h.Delay(ctx, 50*time.Millisecond, 150*time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}
