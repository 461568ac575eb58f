package capture

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/teovin/scoop/internal/domain"
)

func TestApplyInterleavedSessions(t *testing.T) {
	s := NewExchangeStore()
	s.Apply("a", domain.DirectionRequest, []byte("GET /a "))
	s.Apply("b", domain.DirectionRequest, []byte("GET /b "))
	s.Apply("a", domain.DirectionRequest, []byte("HTTP/1.1"))
	s.Apply("b", domain.DirectionResponse, []byte("200 b"))
	s.Apply("a", domain.DirectionResponse, []byte("200 a"))

	exs := s.Exchanges()
	if len(exs) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(exs))
	}
	if !bytes.Equal(exs[0].RequestBytes, []byte("GET /a HTTP/1.1")) {
		t.Fatalf("session a request reassembled wrong: %q", exs[0].RequestBytes)
	}
	if !bytes.Equal(exs[1].ResponseBytes, []byte("200 b")) {
		t.Fatalf("session b response wrong: %q", exs[1].ResponseBytes)
	}
	if got := s.TotalSize(); got != 25 {
		t.Fatalf("expected 25 bytes accounted, got %d", got)
	}
}

func TestApplyReusedSessionSplitsPairs(t *testing.T) {
	s := NewExchangeStore()
	s.Apply("conn1", domain.DirectionRequest, []byte("req1"))
	s.Apply("conn1", domain.DirectionResponse, []byte("resp1"))
	// keep-alive: a second request on the same connection starts a new
	// exchange because the current one already has response bytes
	_, created := s.Apply("conn1", domain.DirectionRequest, []byte("req2"))
	if !created {
		t.Fatalf("second pair on reused session must create a new exchange")
	}
	s.Apply("conn1", domain.DirectionResponse, []byte("resp2"))

	exs := s.Exchanges()
	if len(exs) != 2 {
		t.Fatalf("expected 2 exchanges, got %d", len(exs))
	}
	if exs[0].ID != "conn1" || exs[1].ID != "conn1" {
		t.Fatalf("both exchanges must keep the session id")
	}
	if !bytes.Equal(exs[1].RequestBytes, []byte("req2")) || !bytes.Equal(exs[1].ResponseBytes, []byte("resp2")) {
		t.Fatalf("second pair misrouted: %q / %q", exs[1].RequestBytes, exs[1].ResponseBytes)
	}
}

func TestApplyResponseWithoutRequest(t *testing.T) {
	s := NewExchangeStore()
	_, created := s.Apply("s", domain.DirectionResponse, []byte("early"))
	if !created {
		t.Fatalf("response for unknown session must create an exchange")
	}
	exs := s.Exchanges()
	if len(exs[0].RequestBytes) != 0 || !bytes.Equal(exs[0].ResponseBytes, []byte("early")) {
		t.Fatalf("unexpected exchange: %+v", exs[0])
	}
}

func TestApplyConcurrentAccounting(t *testing.T) {
	s := NewExchangeStore()
	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 100
	chunk := []byte("0123456789")
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sid := fmt.Sprintf("session-%d", w)
			for i := 0; i < perWorker; i++ {
				s.Apply(sid, domain.DirectionRequest, chunk)
			}
		}(w)
	}
	wg.Wait()
	want := int64(workers * perWorker * len(chunk))
	if got := s.TotalSize(); got != want {
		t.Fatalf("expected %d bytes accounted, got %d", want, got)
	}
	if got := s.Len(); got != workers {
		t.Fatalf("expected %d exchanges, got %d", workers, got)
	}
}

func TestRestoreExchangeStore(t *testing.T) {
	exs := []*domain.Exchange{
		{ID: "a", RequestBytes: []byte("12345"), ResponseBytes: []byte("678")},
		{ID: "b", ResponseBytes: []byte("90")},
	}
	s := RestoreExchangeStore(exs)
	if s.Len() != 2 {
		t.Fatalf("expected 2 exchanges, got %d", s.Len())
	}
	if got := s.TotalSize(); got != 10 {
		t.Fatalf("restored size counter should equal buffer bytes, got %d", got)
	}
}
