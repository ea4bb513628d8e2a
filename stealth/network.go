package stealth

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/mapscout/browser"
)

// WaitForStableNetwork waits up to timeout for the page's network to go
// quiet. Running out of time is not an error; only the end of ctx is.
func WaitForStableNetwork(ctx context.Context, page browser.Page, timeout time.Duration) error {
	if err := page.WaitForNetworkIdle(ctx, timeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Debug("network did not settle, continuing", "timeout", timeout, "error", err)
	}
	return nil
}
