package capture

import (
	"sync"
	"time"

	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/internal/infrastructure/config"
)

// Capture is the aggregate recording one browsing session: the target URL,
// the frozen configuration, the exchange store, synthesized exchanges, logs
// and provenance. It exclusively owns its store and lists; only the
// controller and the assembler mutate them.
type Capture struct {
	URL        string
	Config     config.Config
	Store      *ExchangeStore
	Generated  []domain.GeneratedExchange
	Logs       []domain.LogEntry
	Provenance *domain.Provenance

	mu    sync.Mutex
	state domain.State
}

func New(url string, cfg config.Config) *Capture {
	return &Capture{
		URL:    url,
		Config: cfg,
		Store:  NewExchangeStore(),
		state:  domain.StateInit,
	}
}

// Restore rebuilds a capture-shaped aggregate from archived parts. Lifecycle
// state and logs do not survive serialization; the result reports COMPLETE.
func Restore(url string, exchanges []*domain.Exchange, generated []domain.GeneratedExchange, prov *domain.Provenance) *Capture {
	return &Capture{
		URL:        url,
		Store:      RestoreExchangeStore(exchanges),
		Generated:  generated,
		Provenance: prov,
		state:      domain.StateComplete,
	}
}

func (c *Capture) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Capture) setState(s domain.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// beginTeardown transitions to TEARDOWN exactly once. It returns false when
// teardown already started or the capture already reached a terminal state,
// which makes concurrent triggers (step loop vs budget breach) safe.
func (c *Capture) beginTeardown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == domain.StateTeardown || c.state.Terminal() {
		return false
	}
	c.state = domain.StateTeardown
	return true
}

// Log appends one entry to the capture log.
func (c *Capture) Log(msg string, warning bool, trace string) {
	c.mu.Lock()
	c.Logs = append(c.Logs, domain.LogEntry{
		Timestamp: time.Now().UTC(),
		Message:   msg,
		Warning:   warning,
		Trace:     trace,
	})
	c.mu.Unlock()
}

// AddGenerated appends a synthesized exchange.
func (c *Capture) AddGenerated(g domain.GeneratedExchange) {
	c.mu.Lock()
	c.Generated = append(c.Generated, g)
	c.mu.Unlock()
}

// GeneratedSnapshot copies the synthesized exchange list for concurrent
// readers.
func (c *Capture) GeneratedSnapshot() []domain.GeneratedExchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.GeneratedExchange, len(c.Generated))
	copy(out, c.Generated)
	return out
}

// LogSnapshot copies the capture log for concurrent readers.
func (c *Capture) LogSnapshot() []domain.LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.LogEntry, len(c.Logs))
	copy(out, c.Logs)
	return out
}

// TotalSize is the monotonic count of raw bytes ever ingested.
func (c *Capture) TotalSize() int64 {
	return c.Store.TotalSize()
}
