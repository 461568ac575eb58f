package capture

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/internal/infrastructure/config"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.MaxSize = 100
	return cfg
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestIngestReturnsChunkUnchanged(t *testing.T) {
	c := New("https://example.com", testConfig())
	c.setState(domain.StateCapture)
	a := NewAssembler(c, nil, nopLogger(), nil)

	chunk := []byte("hello")
	out := a.Ingest("s", domain.DirectionRequest, chunk)
	if !bytes.Equal(out, chunk) {
		t.Fatalf("ingest must hand back the chunk unchanged, got %q", out)
	}
}

func TestBudgetTriggersTeardownOnce(t *testing.T) {
	c := New("https://example.com", testConfig())
	c.setState(domain.StateCapture)
	calls := 0
	teardown := func() {
		calls++
		c.beginTeardown()
	}
	a := NewAssembler(c, teardown, nopLogger(), nil)

	a.Ingest("s", domain.DirectionRequest, make([]byte, 99))
	if calls != 0 {
		t.Fatalf("teardown fired below budget")
	}
	a.Ingest("s", domain.DirectionResponse, make([]byte, 1)) // reaches exactly 100
	if calls != 1 {
		t.Fatalf("expected 1 teardown call at budget, got %d", calls)
	}
	// in-flight chunks after teardown are still accepted and accounted,
	// and do not re-trigger teardown
	a.Ingest("s", domain.DirectionResponse, make([]byte, 50))
	if calls != 1 {
		t.Fatalf("teardown must not fire again, got %d calls", calls)
	}
	if got := c.TotalSize(); got != 150 {
		t.Fatalf("post-teardown chunk not accounted, total %d", got)
	}
}

func TestBudgetIgnoredOutsideCapture(t *testing.T) {
	c := New("https://example.com", testConfig())
	calls := 0
	a := NewAssembler(c, func() { calls++ }, nopLogger(), nil)

	a.Ingest("s", domain.DirectionRequest, make([]byte, 500))
	if calls != 0 {
		t.Fatalf("budget teardown must only fire during CAPTURE")
	}
}
