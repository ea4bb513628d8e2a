package scraper

import (
	"context"

	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/stealth"
)

// feedWheelDistance bounds the wheel travel of one scroll round, in pixels.
const feedWheelDistance = 1200

// scrollState is the ordered, de-duplicated set of place links found so
// far and the count of consecutive rounds that found nothing new.
type scrollState struct {
	links []string
	seen  map[string]struct{}
	idle  int
	max   int
}

func newScrollState(max int) *scrollState {
	return &scrollState{seen: make(map[string]struct{}), max: max}
}

// add appends the hrefs not seen before, in order, stopping at the cap.
// It returns how many were added.
func (s *scrollState) add(hrefs []string) int {
	added := 0
	for _, h := range hrefs {
		if s.full() {
			break
		}
		if _, ok := s.seen[h]; ok {
			continue
		}
		s.seen[h] = struct{}{}
		s.links = append(s.links, h)
		added++
	}
	return added
}

func (s *scrollState) full() bool {
	return s.max > 0 && len(s.links) >= s.max
}

// collectLinks scrolls the results feed until the cap is reached, the end
// of the list shows, or MaxIdleScrolls rounds in a row add no link.
// A failed read or scroll counts as a round with no new links.
func (r *run) collectLinks(ctx context.Context, page browser.Page) ([]string, error) {
	st := newScrollState(r.q.MaxPlaces)

	// Hover the feed so wheel and scroll events land where a person's would.
	if err := r.human.MoveMouse(ctx, page, stealth.Point{X: 200, Y: 400}, 10); err != nil {
		if ctx.Err() != nil {
			return st.links, categorizeError(ctx.Err(), "moving to results feed")
		}
		r.log.Debug("mouse move failed", "error", err)
	}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return st.links, categorizeError(err, "collecting place links")
		}

		hrefs := r.readLinks(ctx, page)
		added := st.add(hrefs)
		r.log.Debug("scroll round", "round", round, "visible", len(hrefs), "new", added, "total", len(st.links))

		if st.full() {
			break
		}
		if added == 0 {
			st.idle++
		} else {
			st.idle = 0
		}
		if st.idle >= r.cfg.MaxIdleScrolls {
			r.log.Debug("no new links, stopping", "rounds", st.idle)
			break
		}
		if r.atEndOfList(ctx, page) {
			r.log.Debug("end of list reached")
			break
		}

		if err := r.human.Scroll(ctx, page, feedWheelDistance); err != nil {
			if ctx.Err() != nil {
				return st.links, categorizeError(ctx.Err(), "scrolling results feed")
			}
			r.log.Debug("wheel scroll failed", "error", err)
		}
		// The wheel rarely reaches the bottom of a long feed, and only the
		// bottom triggers the next page of results.
		if _, err := page.Evaluate(ctx, scrollFeedJS); err != nil {
			r.log.Debug("feed scroll failed", "error", err)
		}
		if err := r.human.Pause(ctx, r.cfg.ScrollPause); err != nil {
			return st.links, categorizeError(err, "pausing after scroll")
		}
	}
	return st.links, nil
}

// readLinks returns the hrefs of every visible place link, or nil when
// the read fails.
func (r *run) readLinks(ctx context.Context, page browser.Page) []string {
	readCtx := ctx
	if r.cfg.LinkReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, r.cfg.LinkReadTimeout)
		defer cancel()
	}

	res, err := page.Locator(placeLinkSelector).EvaluateAll(readCtx, readLinksJS)
	if err != nil {
		r.log.Debug("reading place links failed", "error", err)
		return nil
	}

	var hrefs []string
	for _, v := range res.Arr() {
		if s, ok := v.Val().(string); ok && s != "" {
			hrefs = append(hrefs, s)
		}
	}
	return hrefs
}

func (r *run) atEndOfList(ctx context.Context, page browser.Page) bool {
	n, err := page.Locator(endOfListSelector).Count(ctx)
	if err != nil {
		r.log.Debug("end-of-list check failed", "error", err)
		return false
	}
	return n > 0
}
