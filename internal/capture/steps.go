package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/pkg/shared/id"
)

// step is one unit of the capture pipeline. Steps run strictly in order,
// each under its own timeout; none runs concurrently with another.
type step struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context, pg Page) error
}

// pipeline builds the ordered step list from the capture configuration.
// Initial navigation always comes first and the network-idle wait always
// last; everything in between is toggled by config.
func (ctl *Controller) pipeline() []step {
	cfg := ctl.cap.Config
	steps := []step{{
		name:    "navigate",
		timeout: cfg.NavTimeout,
		run: func(ctx context.Context, pg Page) error {
			return pg.Navigate(ctx, ctl.cap.URL)
		},
	}}
	if cfg.RunBehaviors {
		steps = append(steps, step{
			name:    "behaviors",
			timeout: cfg.BehaviorTimeout,
			run: func(ctx context.Context, pg Page) error {
				return pg.RunBehaviors(ctx, BehaviorOptions{
					Autofetch:    cfg.GrabSecondary,
					Autoplay:     cfg.Autoplay,
					SiteSpecific: cfg.SiteSpecific,
					Timeout:      cfg.BehaviorTimeout,
				})
			},
		})
	}
	if cfg.AutoScroll {
		steps = append(steps, step{
			name:    "auto-scroll",
			timeout: cfg.ScrollTimeout,
			run: func(ctx context.Context, pg Page) error {
				return pg.ScrollToBottom(ctx)
			},
		})
	}
	if cfg.Screenshot {
		steps = append(steps, step{
			name:    "screenshot",
			timeout: cfg.ScreenshotTimeout,
			run:     ctl.captureScreenshot,
		})
	}
	steps = append(steps, step{
		name:    "wait-network-idle",
		timeout: cfg.IdleTimeout,
		run: func(ctx context.Context, pg Page) error {
			return pg.WaitNetworkIdle(ctx, cfg.IdleWindow)
		},
	})
	return steps
}

// ScreenshotURL is the synthetic URL screenshots are archived under.
const ScreenshotURL = "urn:scoop:screenshot"

// captureScreenshot rasters the full page and records it as a synthesized
// exchange. Its bytes do not count against the size budget; only intercepted
// traffic does.
func (ctl *Controller) captureScreenshot(ctx context.Context, pg Page) error {
	png, err := pg.Screenshot(ctx)
	if err != nil {
		return err
	}
	ctl.cap.AddGenerated(domain.NewGeneratedExchange(
		id.New(), time.Now().UTC(), ScreenshotURL, "image/png", png,
		ctl.cap.Config.ScreenshotEntryPoint))
	ctl.cap.Log(fmt.Sprintf("screenshot captured (%d bytes)", len(png)), false, "")
	return nil
}
