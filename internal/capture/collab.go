package capture

import (
	"context"
	"time"

	"github.com/teovin/scoop/internal/domain"
)

// Sink receives every byte segment observed by the proxy transport. Ingest
// must be safe to call from the transport's own delivery goroutines and
// returns the bytes unchanged so the transport can keep forwarding them.
type Sink interface {
	Ingest(sessionID string, dir domain.Direction, chunk []byte) []byte
}

// Transport is the TLS-terminating proxy the browser is pointed at. Only the
// delivery contract is consumed here: byte chunks tagged with a session id
// and a direction, pushed into the Sink.
type Transport interface {
	Start(ctx context.Context, sink Sink) error
	Addr() string
	Close() error
}

// Browser acquires controllable pages bound to the proxy endpoint.
type Browser interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close() error
}

// PageOptions configure a freshly acquired page.
type PageOptions struct {
	ProxyAddr string
	Width     int
	Height    int
}

// BehaviorOptions configure in-page behavior execution.
type BehaviorOptions struct {
	Autofetch    bool
	Autoplay     bool
	SiteSpecific bool
	Timeout      time.Duration
}

// Page drives one browser page. All blocking calls honor their context.
type Page interface {
	Navigate(ctx context.Context, url string) error
	RunBehaviors(ctx context.Context, opts BehaviorOptions) error
	ScrollToBottom(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error
	Close() error
}
