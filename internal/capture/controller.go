package capture

import (
	"context"
	"fmt"
	"html"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
	"github.com/teovin/scoop/pkg/shared/id"
)

// ProvenanceURL is the synthetic URL the provenance summary page is
// archived under.
const ProvenanceURL = "urn:scoop:provenance"

// EventFunc receives capture lifecycle notifications (state changes, step
// progress) for live monitoring. It must not block.
type EventFunc func(event, detail string)

// Controller drives one capture through its ordered phases. It exclusively
// owns the browser and proxy collaborators for the capture's lifetime and
// releases them together, exactly once, at teardown.
type Controller struct {
	cap       *Capture
	asm       *Assembler
	transport Transport
	browser   Browser
	logger    *zerolog.Logger
	metrics   *obs.Metrics
	onEvent   EventFunc

	page          Page
	releaseOnce   sync.Once
	budgetTripped atomic.Bool
	startedAt     time.Time
}

// Option tweaks controller construction.
type Option func(*Controller)

// WithMetrics attaches the prometheus metric set.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithEvents attaches a lifecycle event listener.
func WithEvents(fn EventFunc) Option {
	return func(c *Controller) { c.onEvent = fn }
}

func NewController(c *Capture, transport Transport, browser Browser, logger *zerolog.Logger, opts ...Option) *Controller {
	ctl := &Controller{
		cap:       c,
		transport: transport,
		browser:   browser,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(ctl)
	}
	ctl.asm = NewAssembler(c, ctl.budgetTeardown, logger, ctl.metrics)
	return ctl
}

// Assembler exposes the ingestion sink, e.g. for transports wired externally.
func (ctl *Controller) Assembler() *Assembler { return ctl.asm }

// Capture runs the full lifecycle: SETUP acquires the proxy and a page,
// CAPTURE executes the configured step pipeline strictly in order, then
// teardown releases both collaborators and the capture settles in a terminal
// state. Step failures are logged and skipped; only resource acquisition
// failures abort the capture.
func (ctl *Controller) Capture(ctx context.Context) (domain.State, error) {
	if ctl.cap.State() != domain.StateInit {
		return ctl.cap.State(), fmt.Errorf("capture already ran (state %s)", ctl.cap.State())
	}
	ctl.startedAt = time.Now().UTC()
	if ctl.metrics != nil {
		ctl.metrics.ActiveCaptures.Inc()
		defer ctl.metrics.ActiveCaptures.Dec()
	}

	ctl.transition(domain.StateSetup)
	if err := ctl.transport.Start(ctx, ctl.asm); err != nil {
		ctl.Teardown()
		ctl.fail()
		return domain.StateError, &SetupError{Resource: "proxy transport", Err: err}
	}
	page, err := ctl.browser.NewPage(ctx, PageOptions{
		ProxyAddr: ctl.transport.Addr(),
		Width:     ctl.cap.Config.WindowWidth,
		Height:    ctl.cap.Config.WindowHeight,
	})
	if err != nil {
		// the launcher may have started the browser process even though
		// page acquisition failed; release everything, not just the proxy
		ctl.Teardown()
		ctl.fail()
		return domain.StateError, &SetupError{Resource: "browser page", Err: err}
	}
	ctl.page = page
	ctl.cap.Log(fmt.Sprintf("capture of %s started via proxy %s", ctl.cap.URL, ctl.transport.Addr()), false, "")

	ctl.transition(domain.StateCapture)
	for _, st := range ctl.pipeline() {
		if ctl.cap.State() != domain.StateCapture {
			ctl.cap.Log("capture ended early, skipping remaining steps", true, "")
			ctl.logger.Warn().Str("step", st.name).Msg("capture ended early, pipeline stopped")
			break
		}
		ctl.emit("step_started", st.name)
		ctl.logger.Info().Str("step", st.name).Dur("timeout", st.timeout).Msg("running step")
		sctx, cancel := context.WithTimeout(ctx, st.timeout)
		err := st.run(sctx, page)
		cancel()
		if err != nil {
			serr := &StepError{Step: st.name, Err: err}
			ctl.cap.Log(serr.Error(), true, fmt.Sprintf("%+v", err))
			ctl.logger.Warn().Err(err).Str("step", st.name).Msg("step failed, continuing")
			if ctl.metrics != nil {
				ctl.metrics.StepFailures.WithLabelValues(st.name).Inc()
			}
			ctl.emit("step_failed", st.name)
			continue
		}
		ctl.emit("step_finished", st.name)
	}

	ctl.Teardown()

	final := domain.StateComplete
	if ctl.budgetTripped.Load() {
		final = domain.StatePartial
	}
	ctl.cap.setState(final)
	if ctl.metrics != nil {
		ctl.metrics.CapturesByState.WithLabelValues(string(final)).Inc()
	}
	ctl.emit("capture_finished", string(final))
	ctl.cap.Log(fmt.Sprintf("capture finished in state %s: %d exchanges, %d bytes",
		final, ctl.cap.Store.Len(), ctl.cap.TotalSize()), false, "")
	return final, nil
}

// Teardown releases the browser page and the proxy transport. The transition
// guard makes it a no-op when teardown already began, so the step loop and a
// budget breach may race to call it; resource release runs at most once.
// Chunk ingestion is not cancelled — the assembler keeps accepting and
// accounting data that is already in flight.
func (ctl *Controller) Teardown() {
	if !ctl.cap.beginTeardown() {
		return
	}
	ctl.emit("teardown", "")
	ctl.releaseOnce.Do(func() {
		if ctl.cap.Config.ProvenanceSummary {
			ctl.recordProvenance()
		}
		if ctl.page != nil {
			if err := ctl.page.Close(); err != nil {
				ctl.logger.Warn().Err(err).Msg("page close failed")
			}
		}
		if err := ctl.browser.Close(); err != nil {
			ctl.logger.Warn().Err(err).Msg("browser close failed")
		}
		if err := ctl.transport.Close(); err != nil {
			ctl.logger.Warn().Err(err).Msg("proxy close failed")
		}
		ctl.cap.Log("browser and proxy resources released", false, "")
	})
}

// budgetTeardown is handed to the assembler; it marks the capture partial
// before tearing down.
func (ctl *Controller) budgetTeardown() {
	ctl.budgetTripped.Store(true)
	ctl.Teardown()
}

// recordProvenance fills the provenance summary and attaches it as a
// navigable page of the archive.
func (ctl *Controller) recordProvenance() {
	now := time.Now().UTC()
	prov := &domain.Provenance{
		Software:   obs.Name,
		Version:    obs.Version,
		OS:         runtime.GOOS + "/" + runtime.GOARCH,
		Target:     ctl.cap.URL,
		StartedAt:  ctl.startedAt,
		FinishedAt: now,
	}
	ctl.cap.Provenance = prov
	ctl.cap.AddGenerated(domain.NewGeneratedExchange(
		id.New(), now, ProvenanceURL, "text/html; charset=utf-8",
		renderProvenancePage(prov), true))
}

// renderProvenancePage builds the human-readable summary page that travels
// with the archive.
func renderProvenancePage(prov *domain.Provenance) []byte {
	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Capture provenance</title></head>
<body>
<h1>Capture provenance</h1>
<dl>
<dt>Software</dt><dd>%s %s</dd>
<dt>OS</dt><dd>%s</dd>
<dt>Target</dt><dd><a href="%s">%s</a></dd>
<dt>Started</dt><dd>%s</dd>
<dt>Finished</dt><dd>%s</dd>
</dl>
</body>
</html>
`,
		html.EscapeString(prov.Software), html.EscapeString(prov.Version),
		html.EscapeString(prov.OS),
		html.EscapeString(prov.Target), html.EscapeString(prov.Target),
		prov.StartedAt.Format(time.RFC3339),
		prov.FinishedAt.Format(time.RFC3339)))
}

func (ctl *Controller) transition(s domain.State) {
	ctl.cap.setState(s)
	ctl.logger.Debug().Str("state", string(s)).Msg("state transition")
	ctl.emit("state", string(s))
}

func (ctl *Controller) fail() {
	ctl.cap.setState(domain.StateError)
	if ctl.metrics != nil {
		ctl.metrics.CapturesByState.WithLabelValues(string(domain.StateError)).Inc()
	}
	ctl.emit("capture_finished", string(domain.StateError))
}

func (ctl *Controller) emit(event, detail string) {
	if ctl.onEvent != nil {
		ctl.onEvent(event, detail)
	}
}
