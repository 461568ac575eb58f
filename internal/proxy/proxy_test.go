package proxy

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/domain"
)

type recordingSink struct {
	mu     sync.Mutex
	chunks map[domain.Direction][]byte
	sids   map[string]struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		chunks: make(map[domain.Direction][]byte),
		sids:   make(map[string]struct{}),
	}
}

func (s *recordingSink) Ingest(sessionID string, dir domain.Direction, chunk []byte) []byte {
	s.mu.Lock()
	s.chunks[dir] = append(s.chunks[dir], chunk...)
	s.sids[sessionID] = struct{}{}
	s.mu.Unlock()
	return chunk
}

func (s *recordingSink) snapshot() (req, resp []byte, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.chunks[domain.DirectionRequest]...),
		append([]byte(nil), s.chunks[domain.DirectionResponse]...),
		len(s.sids)
}

func netDial(t *testing.T, addr string) (net.Conn, error) {
	t.Helper()
	return net.DialTimeout("tcp", addr, 2*time.Second)
}

func TestPlainForwardingTapsBothDirections(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "upstream says hi")
	}))
	defer upstream.Close()

	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}
	logger := zerolog.Nop()
	p := New("127.0.0.1", 0, ca, &logger)
	sink := newRecordingSink()
	if err := p.Start(context.Background(), sink); err != nil {
		t.Fatalf("start proxy: %v", err)
	}
	defer p.Close()

	// speak the proxy protocol directly: absolute-URI request over cleartext
	conn, err := netDial(t, p.Addr())
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()
	reqLine := "GET " + upstream.URL + "/hello HTTP/1.1\r\nHost: " + strings.TrimPrefix(upstream.URL, "http://") + "\r\n\r\n"
	if _, err := io.WriteString(conn, reqLine); err != nil {
		t.Fatalf("write request: %v", err)
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("upstream says hi")) {
		t.Fatalf("unexpected response: %d %q", resp.StatusCode, body)
	}

	reqBytes, respBytes, sessions := sink.snapshot()
	if !bytes.Contains(reqBytes, []byte("GET /hello HTTP/1.1")) {
		t.Fatalf("request direction not tapped in origin form: %q", reqBytes)
	}
	if !bytes.Contains(respBytes, []byte("upstream says hi")) {
		t.Fatalf("response direction not tapped: %q", respBytes)
	}
	if sessions != 1 {
		t.Fatalf("expected a single session id, got %d", sessions)
	}
}

func TestProxyRejectsNonProxyRequest(t *testing.T) {
	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}
	logger := zerolog.Nop()
	p := New("127.0.0.1", 0, ca, &logger)
	if err := p.Start(context.Background(), newRecordingSink()); err != nil {
		t.Fatalf("start proxy: %v", err)
	}
	defer p.Close()

	conn, err := netDial(t, p.Addr())
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, "GET /relative HTTP/1.1\r\nHost: nowhere\r\n\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(line, "400") {
		t.Fatalf("expected 400 for non-absolute target, got %q", line)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ca, err := GenerateCertAuthority()
	if err != nil {
		t.Fatalf("generate ca: %v", err)
	}
	logger := zerolog.Nop()
	p := New("127.0.0.1", 0, ca, &logger)
	if err := p.Start(context.Background(), newRecordingSink()); err != nil {
		t.Fatalf("start proxy: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
