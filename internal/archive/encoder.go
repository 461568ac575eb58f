package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/teovin/scoop/internal/archive/warc"
	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

// Logical paths inside the archive container.
const (
	RecordFilePath = "archive/data.warc"
	PagesPath      = "pages/pages.jsonl"
	DescriptorPath = "datapackage.json"
	RawDirPrefix   = "raw/"
)

// Encode serializes a finished capture into the container model. The primary
// record file holds a request and a response record per exchange, in store
// order, whose blocks reproduce the captured bytes verbatim; synthesized
// exchanges follow as resource records. With includeRaw, each exchange's
// buffers are additionally stored as individually addressable payloads, which
// the decoder treats as the authoritative byte source.
//
// The function is pure given its inputs: it reads the capture and returns a
// fresh container, retaining no references into either.
func Encode(c *capture.Capture, includeRaw bool) (*domain.Container, error) {
	state := c.State()
	if !state.Archivable() {
		return nil, &EncodeError{State: state}
	}

	ct := &domain.Container{Files: make(map[string][]byte)}
	var buf bytes.Buffer
	seq := 0
	nextID := func() string {
		seq++
		return fmt.Sprintf("urn:scoop:record:%d", seq)
	}

	info := fmt.Sprintf("software: %s/%s\r\nformat: WARC File Format 1.1\r\n", obs.Name, obs.Version)
	if err := warc.Write(&buf, &warc.Record{
		Type:        warc.TypeWarcinfo,
		RecordID:    nextID(),
		Date:        time.Now().UTC(),
		ContentType: "application/warc-fields",
		Block:       []byte(info),
	}); err != nil {
		return nil, err
	}

	exchanges := c.Store.Exchanges()
	for i, ex := range exchanges {
		target := requestTarget(ex.RequestBytes, c.URL)
		var reqID string
		if len(ex.RequestBytes) > 0 {
			reqID = nextID()
			if err := warc.Write(&buf, &warc.Record{
				Type:        warc.TypeRequest,
				RecordID:    reqID,
				Date:        ex.Timestamp,
				TargetURI:   target,
				SessionID:   ex.ID,
				ContentType: "application/http; msgtype=request",
				Block:       ex.RequestBytes,
			}); err != nil {
				return nil, err
			}
		}
		if len(ex.ResponseBytes) > 0 {
			if err := warc.Write(&buf, &warc.Record{
				Type:         warc.TypeResponse,
				RecordID:     nextID(),
				Date:         ex.Timestamp,
				TargetURI:    target,
				ConcurrentTo: reqID,
				SessionID:    ex.ID,
				ContentType:  "application/http; msgtype=response",
				Block:        ex.ResponseBytes,
			}); err != nil {
				return nil, err
			}
		}
		if includeRaw {
			if len(ex.RequestBytes) > 0 {
				ct.Files[rawPath(i, domain.DirectionRequest, ex)] = append([]byte(nil), ex.RequestBytes...)
			}
			if len(ex.ResponseBytes) > 0 {
				ct.Files[rawPath(i, domain.DirectionResponse, ex)] = append([]byte(nil), ex.ResponseBytes...)
			}
		}
	}

	for _, g := range c.Generated {
		if err := warc.Write(&buf, &warc.Record{
			Type:        warc.TypeResource,
			RecordID:    nextID(),
			Date:        g.Timestamp,
			TargetURI:   g.Request.URL,
			SessionID:   g.ID,
			ContentType: "application/http; msgtype=response",
			Block:       renderResponse(g.Response),
		}); err != nil {
			return nil, err
		}
	}
	ct.Files[RecordFilePath] = buf.Bytes()

	// Page list: the first stored exchange is the crawl's entry page, then
	// every entry-point generated exchange in generation order.
	if len(exchanges) > 0 {
		ct.Pages = append(ct.Pages, domain.PageDescriptor{
			URL:       c.URL,
			Timestamp: exchanges[0].Timestamp,
		})
	}
	for _, g := range c.Generated {
		if g.IsEntryPoint {
			ct.Pages = append(ct.Pages, domain.PageDescriptor{
				URL:       g.Request.URL,
				Timestamp: g.Timestamp,
			})
		}
	}

	ct.Provenance = c.Provenance
	return ct, nil
}

// rawPath names one direction's payload file. The store index keeps paths
// unique when a reused session yields exchanges with identical timestamps.
func rawPath(idx int, dir domain.Direction, ex *domain.Exchange) string {
	return fmt.Sprintf("%s%04d_%s_%d_%s", RawDirPrefix, idx, dir, ex.Timestamp.UnixNano(), ex.ID)
}
