package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/capture"
)

// session is one DevTools protocol connection, implementing capture.Page.
// Commands are matched to responses by id; events feed the idle tracker and
// the navigation waiter.
type session struct {
	conn   *websocket.Conn
	logger *zerolog.Logger

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan cdpResponse
	closed  bool

	idle   *idleTracker
	loaded chan struct{}
}

type cdpMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpResponse struct {
	result json.RawMessage
	err    error
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *cdpError) Error() string {
	return fmt.Sprintf("cdp: %s (code %d)", e.Message, e.Code)
}

func dialSession(ctx context.Context, wsURL string, logger *zerolog.Logger) (*session, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: dial devtools: %w", err)
	}
	s := &session{
		conn:    conn,
		logger:  logger,
		pending: make(map[int64]chan cdpResponse),
		idle:    newIdleTracker(),
		loaded:  make(chan struct{}, 1),
	}
	go s.readLoop()
	for _, domainName := range []string{"Page.enable", "Network.enable", "Runtime.enable"} {
		if _, err := s.call(ctx, domainName, nil); err != nil {
			_ = s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.failPending(err)
			return
		}
		var msg cdpMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.ID != 0 {
			s.mu.Lock()
			ch, ok := s.pending[msg.ID]
			delete(s.pending, msg.ID)
			s.mu.Unlock()
			if ok {
				resp := cdpResponse{result: msg.Result}
				if msg.Error != nil {
					resp.err = msg.Error
				}
				ch <- resp
			}
			continue
		}
		s.handleEvent(msg.Method, msg.Params)
	}
}

func (s *session) handleEvent(method string, params json.RawMessage) {
	switch method {
	case "Page.loadEventFired":
		select {
		case s.loaded <- struct{}{}:
		default:
		}
	case "Network.requestWillBeSent":
		var ev struct {
			RequestID string `json:"requestId"`
		}
		if json.Unmarshal(params, &ev) == nil {
			s.idle.started(ev.RequestID)
		}
	case "Network.loadingFinished", "Network.loadingFailed":
		var ev struct {
			RequestID string `json:"requestId"`
		}
		if json.Unmarshal(params, &ev) == nil {
			s.idle.finished(ev.RequestID)
		}
	}
}

func (s *session) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.pending {
		ch <- cdpResponse{err: err}
		delete(s.pending, id)
	}
}

// call issues one protocol command and waits for its response or the
// context.
func (s *session) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	msg := map[string]any{"id": id, "method": method}
	if params != nil {
		msg["params"] = params
	}
	ch := make(chan cdpResponse, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("browser: session closed")
	}
	s.pending[id] = ch
	err := s.conn.WriteJSON(msg)
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("browser: send %s: %w", method, err)
	}
	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, ctx.Err()
	case resp := <-ch:
		if resp.err != nil {
			return nil, fmt.Errorf("browser: %s: %w", method, resp.err)
		}
		return resp.result, nil
	}
}

func (s *session) Navigate(ctx context.Context, url string) error {
	// Drain a stale load signal from a previous navigation.
	select {
	case <-s.loaded:
	default:
	}
	result, err := s.call(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return err
	}
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if json.Unmarshal(result, &nav) == nil && nav.ErrorText != "" {
		return fmt.Errorf("browser: navigation failed: %s", nav.ErrorText)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.loaded:
		return nil
	}
}

func (s *session) RunBehaviors(ctx context.Context, opts capture.BehaviorOptions) error {
	_, err := s.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    behaviorScript(opts),
		"awaitPromise":  true,
		"returnByValue": true,
	})
	return err
}

func (s *session) ScrollToBottom(ctx context.Context) error {
	_, err := s.call(ctx, "Runtime.evaluate", map[string]any{
		"expression":   scrollScript,
		"awaitPromise": true,
	})
	return err
}

func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	result, err := s.call(ctx, "Page.captureScreenshot", map[string]any{"format": "png"})
	if err != nil {
		return nil, err
	}
	var shot struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &shot); err != nil {
		return nil, fmt.Errorf("browser: screenshot payload: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot decode: %w", err)
	}
	return png, nil
}

func (s *session) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	return s.idle.wait(ctx, quiet)
}

func (s *session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

// idleTracker watches in-flight network requests reported over the protocol
// and signals once none have been active for a quiet window.
type idleTracker struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	lastDone time.Time
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[string]struct{}),
		lastDone: time.Now(),
	}
}

func (t *idleTracker) started(id string) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.mu.Unlock()
}

func (t *idleTracker) finished(id string) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastDone = time.Now()
	t.mu.Unlock()
}

func (t *idleTracker) quietSince() (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), t.lastDone
}

func (t *idleTracker) wait(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(quiet / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			inflight, last := t.quietSince()
			if inflight == 0 && time.Since(last) >= quiet {
				return nil
			}
		}
	}
}
