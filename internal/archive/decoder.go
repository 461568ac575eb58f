package archive

import (
	"bytes"
	"fmt"

	"github.com/teovin/scoop/internal/archive/warc"
	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
)

// Decode parses container bytes and reconstructs a capture-shaped aggregate
// whose exchange list, generated-exchange list and provenance are observably
// equal to the originally encoded capture's. Lifecycle state, logs and live
// resources do not survive serialization and are not part of the contract.
func Decode(containerBytes []byte) (*capture.Capture, error) {
	ct, err := ReadContainer(containerBytes)
	if err != nil {
		return nil, err
	}
	return DecodeContainer(ct)
}

// DecodeContainer rebuilds a capture from an already parsed container model.
func DecodeContainer(ct *domain.Container) (*capture.Capture, error) {
	rec, ok := ct.Files[RecordFilePath]
	if !ok {
		return nil, &DecodeError{Reason: "missing record file " + RecordFilePath}
	}
	records, err := warc.ReadAll(bytes.NewReader(rec))
	if err != nil {
		return nil, &DecodeError{Reason: "malformed record file", Err: err}
	}

	var exchanges []*domain.Exchange
	var generated []domain.GeneratedExchange
	openRequests := make(map[string]*domain.Exchange) // record id -> exchange
	for _, r := range records {
		switch r.Type {
		case warc.TypeWarcinfo:
			// descriptive only
		case warc.TypeRequest:
			ex := &domain.Exchange{ID: r.SessionID, Timestamp: r.Date, RequestBytes: r.Block}
			exchanges = append(exchanges, ex)
			openRequests[r.RecordID] = ex
		case warc.TypeResponse:
			if ex := openRequests[r.ConcurrentTo]; ex != nil {
				ex.ResponseBytes = r.Block
				continue
			}
			exchanges = append(exchanges, &domain.Exchange{
				ID:            r.SessionID,
				Timestamp:     r.Date,
				ResponseBytes: r.Block,
			})
		case warc.TypeResource:
			resp, err := parseResponse(r.Block)
			if err != nil {
				return nil, &DecodeError{Reason: fmt.Sprintf("malformed resource record %s", r.RecordID), Err: err}
			}
			generated = append(generated, domain.GeneratedExchange{
				Exchange: domain.Exchange{
					ID:        r.SessionID,
					Timestamp: r.Date,
					Request: &domain.Message{
						Proto:  "HTTP/1.1",
						Method: "GET",
						URL:    r.TargetURI,
					},
					Response: resp,
				},
			})
		}
	}

	// Raw payloads, when present, are unmodified captures and take precedence
	// over bytes re-derived from records.
	for i, ex := range exchanges {
		if b, ok := ct.Files[rawPath(i, domain.DirectionRequest, ex)]; ok {
			ex.RequestBytes = b
		}
		if b, ok := ct.Files[rawPath(i, domain.DirectionResponse, ex)]; ok {
			ex.ResponseBytes = b
		}
	}

	// The leading page descriptor is the root page when intercepted exchanges
	// exist; the remaining descriptors mark entry-point generated exchanges.
	skip := 0
	rootURL := ""
	if len(exchanges) > 0 && len(ct.Pages) > 0 {
		skip = 1
		rootURL = ct.Pages[0].URL
	} else if ct.Provenance != nil {
		rootURL = ct.Provenance.Target
	}
	entryPoints := make(map[string]bool, len(ct.Pages))
	for _, p := range ct.Pages[skip:] {
		entryPoints[pageKey(p.URL, p.Timestamp.UnixNano())] = true
	}
	for i := range generated {
		g := &generated[i]
		if entryPoints[pageKey(g.Request.URL, g.Timestamp.UnixNano())] {
			g.IsEntryPoint = true
		}
	}

	return capture.Restore(rootURL, exchanges, generated, ct.Provenance), nil
}

func pageKey(url string, unixNano int64) string {
	return fmt.Sprintf("%s|%d", url, unixNano)
}
