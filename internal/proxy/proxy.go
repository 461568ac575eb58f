// Package proxy is the intercepting transport a capture points its browser
// at. It terminates TLS for CONNECT tunnels using dynamically issued leaf
// certificates, forwards traffic transparently, and taps every byte segment
// into the capture sink tagged with a per-connection session id and a
// direction.
package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/pkg/shared/id"
)

const dialTimeout = 10 * time.Second

type Proxy struct {
	host   string
	port   int
	ca     *CertAuthority
	logger *zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	sink   capture.Sink
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(host string, port int, ca *CertAuthority, logger *zerolog.Logger) *Proxy {
	return &Proxy{
		host:   host,
		port:   port,
		ca:     ca,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting browser connections. Every
// observed byte segment is pushed into the sink before being forwarded.
func (p *Proxy) Start(ctx context.Context, sink capture.Sink) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", p.host, p.port))
	if err != nil {
		return fmt.Errorf("proxy: listen: %w", err)
	}
	p.mu.Lock()
	p.ln = ln
	p.sink = sink
	p.mu.Unlock()
	p.logger.Info().Str("addr", ln.Addr().String()).Msg("proxy listening")
	go p.acceptLoop(ln)
	return nil
}

// Addr is the actual bound address, valid after Start.
func (p *Proxy) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// Close stops accepting, closes every tracked connection and waits for
// connection handlers to drain. Safe to call more than once.
func (p *Proxy) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ln := p.ln
	conns := make([]net.Conn, 0, len(p.conns))
	for c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	p.wg.Wait()
	return nil
}

func (p *Proxy) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if !p.track(conn) {
			_ = conn.Close()
			return
		}
		p.wg.Add(1)
		go p.handleConn(conn)
	}
}

func (p *Proxy) track(c net.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.conns[c] = struct{}{}
	return true
}

func (p *Proxy) untrack(c net.Conn) {
	p.mu.Lock()
	delete(p.conns, c)
	p.mu.Unlock()
}

func (p *Proxy) handleConn(conn net.Conn) {
	defer p.wg.Done()
	defer p.untrack(conn)
	defer conn.Close()

	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	if req.Method == http.MethodConnect {
		p.handleConnect(conn, req)
		return
	}
	p.handlePlain(conn, req)
}

// handleConnect terminates TLS on both legs and streams decrypted bytes
// through the tap. One session id spans the whole tunnel, so keep-alive
// request/response pairs on it share the id — exchange splitting happens in
// the assembler.
func (p *Proxy) handleConnect(conn net.Conn, req *http.Request) {
	upstreamAddr := hostPort(req.Host, "443")
	if _, err := io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		return
	}
	leaf, err := p.ca.IssueFor(upstreamAddr)
	if err != nil {
		p.logger.Warn().Err(err).Str("host", upstreamAddr).Msg("leaf certificate issuance failed")
		return
	}
	clientTLS := tls.Server(conn, &tls.Config{
		Certificates: []tls.Certificate{leaf},
		NextProtos:   []string{"http/1.1"},
	})
	if err := clientTLS.Handshake(); err != nil {
		return
	}
	upstreamTCP, err := net.DialTimeout("tcp", upstreamAddr, dialTimeout)
	if err != nil {
		_ = clientTLS.Close()
		return
	}
	serverName := upstreamAddr
	if h, _, err := net.SplitHostPort(upstreamAddr); err == nil {
		serverName = h
	}
	upstreamTLS := tls.Client(upstreamTCP, &tls.Config{ServerName: serverName})
	if err := upstreamTLS.Handshake(); err != nil {
		_ = upstreamTLS.Close()
		_ = clientTLS.Close()
		return
	}

	sid := id.New()
	p.logger.Debug().Str("session", sid).Str("host", upstreamAddr).Msg("tls tunnel established")
	go func() {
		_, _ = io.Copy(p.tap(upstreamTLS, sid, domain.DirectionRequest), clientTLS)
		_ = upstreamTLS.Close()
	}()
	_, _ = io.Copy(p.tap(clientTLS, sid, domain.DirectionResponse), upstreamTLS)
	_ = clientTLS.Close()
}

// handlePlain forwards one absolute-URI proxy request over cleartext HTTP.
// The request is re-serialized in origin form, so the tapped bytes are
// exactly the bytes the upstream receives.
func (p *Proxy) handlePlain(conn net.Conn, req *http.Request) {
	if req.URL == nil || req.URL.Host == "" {
		_, _ = io.WriteString(conn, "HTTP/1.1 400 Bad Request\r\n\r\n")
		return
	}
	upstream, err := net.DialTimeout("tcp", hostPort(req.URL.Host, "80"), dialTimeout)
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return
	}
	defer upstream.Close()

	sid := id.New()
	req.RequestURI = ""
	req.Close = true
	req.Header.Set("Connection", "close")
	if err := req.Write(p.tap(upstream, sid, domain.DirectionRequest)); err != nil {
		return
	}
	_, _ = io.Copy(p.tap(conn, sid, domain.DirectionResponse), upstream)
}

// tap wraps a writer so every segment passes through the capture sink first.
// The sink returns the bytes unchanged and forwarding continues with its
// return value, honoring the transparent-delivery contract.
func (p *Proxy) tap(dst io.Writer, sid string, dir domain.Direction) io.Writer {
	return &tapWriter{p: p, dst: dst, sid: sid, dir: dir}
}

type tapWriter struct {
	p   *Proxy
	dst io.Writer
	sid string
	dir domain.Direction
}

func (t *tapWriter) Write(b []byte) (int, error) {
	out := t.p.sink.Ingest(t.sid, t.dir, b)
	n, err := t.dst.Write(out)
	if err != nil {
		return n, err
	}
	return len(b), nil
}

func hostPort(host, defaultPort string) string {
	if strings.Contains(host, ":") {
		return host
	}
	return net.JoinHostPort(host, defaultPort)
}
