package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsScrapeError(t *testing.T) {
	if got := AsScrapeError(nil, ErrCodeInternal); got != nil {
		t.Errorf("AsScrapeError(nil) = %v, want nil", got)
	}

	inner := NewScrapeError(ErrCodeTimeout, "search navigation failed", nil)
	wrapped := fmt.Errorf("job: %w", inner)
	if got := AsScrapeError(wrapped, ErrCodeInternal); got != inner {
		t.Errorf("AsScrapeError(wrapped) = %v, want the wrapped ScrapeError", got)
	}

	plain := errors.New("boom")
	got := AsScrapeError(plain, ErrCodeInternal)
	if got.Code != ErrCodeInternal || got.Message != "boom" || !errors.Is(got, plain) {
		t.Errorf("AsScrapeError(plain) = %+v", got)
	}
}

func TestScrapeErrorString(t *testing.T) {
	tests := []struct {
		err  *ScrapeError
		want string
	}{
		{NewScrapeError(ErrCodeNotFound, "job not found", nil), "NOT_FOUND: job not found"},
		{NewScrapeError(ErrCodeNavigation, "goto", errors.New("net::ERR_ABORTED")), "NAVIGATION_FAILED: goto: net::ERR_ABORTED"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
