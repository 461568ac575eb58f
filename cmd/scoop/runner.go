package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/browser"
	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
	"github.com/teovin/scoop/internal/proxy"
)

// runCapture wires the real collaborators — a freshly generated certificate
// authority, the intercepting proxy and a headless Chromium — around one
// capture and drives it to a terminal state.
func runCapture(ctx context.Context, c *capture.Capture, logger *zerolog.Logger, metrics *obs.Metrics, onEvent capture.EventFunc) (domain.State, error) {
	ca, err := proxy.GenerateCertAuthority()
	if err != nil {
		return domain.StateError, err
	}
	transport := proxy.New(c.Config.ProxyHost, c.Config.ProxyPort, ca, logger)
	br := browser.NewLauncher(browser.Options{
		ExecutablePath: c.Config.ChromePath,
		Headless:       c.Config.Headless,
		Autoplay:       c.Config.Autoplay,
	}, logger)

	opts := []capture.Option{capture.WithMetrics(metrics)}
	if onEvent != nil {
		opts = append(opts, capture.WithEvents(onEvent))
	}
	ctl := capture.NewController(c, transport, br, logger, opts...)
	return ctl.Capture(ctx)
}
