package browser

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/capture"
)

// Launcher defers the Chromium launch until the first page is requested,
// because the proxy address the process must be pinned to is only known once
// the transport is bound.
type Launcher struct {
	opts   Options
	logger *zerolog.Logger

	mu     sync.Mutex
	chrome *Chrome
}

func NewLauncher(opts Options, logger *zerolog.Logger) *Launcher {
	return &Launcher{opts: opts, logger: logger}
}

func (l *Launcher) NewPage(ctx context.Context, po capture.PageOptions) (capture.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chrome == nil {
		opts := l.opts
		opts.ProxyAddr = po.ProxyAddr
		opts.Width = po.Width
		opts.Height = po.Height
		c, err := Launch(ctx, opts, l.logger)
		if err != nil {
			return nil, err
		}
		l.chrome = c
	}
	return l.chrome.NewPage(ctx, po)
}

func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chrome == nil {
		return nil
	}
	err := l.chrome.Close()
	l.chrome = nil
	return err
}
