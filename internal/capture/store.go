package capture

import (
	"sync"
	"time"

	"github.com/teovin/scoop/internal/domain"
)

// ExchangeStore holds exchanges ordered by first-byte arrival plus the
// running byte counter. The open index maps a session id to its most recent
// exchange so chunk routing does not rescan the slice on every delivery.
type ExchangeStore struct {
	mu        sync.Mutex
	exchanges []*domain.Exchange
	open      map[string]int
	totalSize int64
}

func NewExchangeStore() *ExchangeStore {
	return &ExchangeStore{open: make(map[string]int)}
}

// RestoreExchangeStore rebuilds a store from decoded exchanges. The byte
// counter is recomputed from the buffers, which by the counter invariant
// equals the total ever ingested.
func RestoreExchangeStore(exchanges []*domain.Exchange) *ExchangeStore {
	s := NewExchangeStore()
	for i, ex := range exchanges {
		s.exchanges = append(s.exchanges, ex)
		s.open[ex.ID] = i
		s.totalSize += ex.Size()
	}
	return s
}

// Apply routes one delivered chunk to its exchange and returns the byte total
// after the append, plus whether a new exchange was created for it. The whole
// read-modify-write runs under one lock so deliveries from concurrent proxy
// sessions never interleave.
//
// Selection rule: the most recent exchange for the session takes the chunk
// when the direction is response, or when it is request and that exchange has
// no response bytes yet. Otherwise a new exchange is created — this is how a
// reused connection's second request/response pair becomes a distinct
// exchange.
func (s *ExchangeStore) Apply(sessionID string, dir domain.Direction, chunk []byte) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := -1
	if idx, ok := s.open[sessionID]; ok {
		ex := s.exchanges[idx]
		if dir == domain.DirectionResponse || len(ex.ResponseBytes) == 0 {
			target = idx
		}
	}
	created := target < 0
	if created {
		s.exchanges = append(s.exchanges, &domain.Exchange{
			ID:        sessionID,
			Timestamp: time.Now().UTC(),
		})
		target = len(s.exchanges) - 1
		s.open[sessionID] = target
	}

	ex := s.exchanges[target]
	if dir == domain.DirectionRequest {
		ex.RequestBytes = append(ex.RequestBytes, chunk...)
	} else {
		ex.ResponseBytes = append(ex.ResponseBytes, chunk...)
	}
	s.totalSize += int64(len(chunk))
	return s.totalSize, created
}

// Exchanges returns a snapshot of the ordered exchange list.
func (s *ExchangeStore) Exchanges() []*domain.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

func (s *ExchangeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.exchanges)
}

func (s *ExchangeStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}
