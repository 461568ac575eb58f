package capture

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

// Assembler consumes tagged byte chunks from the proxy transport, maps them
// onto exchanges and enforces the size budget. It is the single ingestion
// entry point; store mutation and size accounting are serialized inside the
// store, so Ingest may be called from any transport goroutine.
type Assembler struct {
	capture  *Capture
	maxSize  int64
	teardown func()
	logger   *zerolog.Logger
	metrics  *obs.Metrics
}

// NewAssembler wires the assembler to its capture. teardown is the
// controller's idempotent teardown trigger; it fires at most the first time
// the budget is crossed while the capture is still in CAPTURE.
func NewAssembler(c *Capture, teardown func(), logger *zerolog.Logger, metrics *obs.Metrics) *Assembler {
	return &Assembler{
		capture:  c,
		maxSize:  c.Config.MaxSize,
		teardown: teardown,
		logger:   logger,
		metrics:  metrics,
	}
}

// Ingest appends one chunk to its exchange and accounts it against the
// budget. Chunks arriving after teardown began are still accepted and
// accounted, so nothing is lost at the boundary; the budget check uses >=, so
// the exchange that crosses the threshold is kept whole.
func (a *Assembler) Ingest(sessionID string, dir domain.Direction, chunk []byte) []byte {
	total, created := a.capture.Store.Apply(sessionID, dir, chunk)

	if a.metrics != nil {
		a.metrics.BytesIngested.WithLabelValues(string(dir)).Add(float64(len(chunk)))
		if created {
			a.metrics.ExchangesTotal.Inc()
		}
	}
	a.logger.Trace().
		Str("session", sessionID).
		Str("direction", string(dir)).
		Int("bytes", len(chunk)).
		Int64("total", total).
		Msg("chunk ingested")

	if total >= a.maxSize && a.capture.State() == domain.StateCapture {
		msg := fmt.Sprintf("size budget reached (%d of %d bytes), ending capture early", total, a.maxSize)
		a.capture.Log(msg, true, "")
		a.logger.Warn().Int64("total", total).Int64("max", a.maxSize).Msg("size budget reached")
		if a.metrics != nil {
			a.metrics.BudgetBreaches.Inc()
		}
		if a.teardown != nil {
			a.teardown()
		}
	}
	return chunk
}
