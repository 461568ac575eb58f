package archive

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/pb33f/harhar"

	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
	"github.com/teovin/scoop/pkg/shared/redact"
)

// ExportHAR renders a finished capture as an HTTP Archive document. Raw
// buffers are parsed best-effort: exchanges whose bytes cannot be parsed as
// HTTP/1.x are skipped rather than failing the export. Sensitive header
// values are masked.
func ExportHAR(c *capture.Capture) (*harhar.HAR, error) {
	state := c.State()
	if !state.Archivable() {
		return nil, &EncodeError{State: state}
	}

	har := &harhar.HAR{
		Log: harhar.Log{
			Version: "1.2",
			Creator: harhar.Creator{Name: obs.Name, Version: obs.Version},
		},
	}
	const pageID = "page_0"
	var pageStart time.Time

	for _, ex := range c.Store.Exchanges() {
		entry, ok := harEntry(ex, c.URL)
		if !ok {
			continue
		}
		entry.PageRef = pageID
		if pageStart.IsZero() {
			pageStart = ex.Timestamp
		}
		har.Log.Entries = append(har.Log.Entries, *entry)
	}
	if !pageStart.IsZero() {
		har.Log.Pages = []harhar.Page{{
			Start: pageStart.Format(time.RFC3339),
			ID:    pageID,
			Title: c.URL,
		}}
	}
	return har, nil
}

func harEntry(ex *domain.Exchange, rootURL string) (*harhar.Entry, bool) {
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(ex.RequestBytes)))
	if err != nil {
		return nil, false
	}
	reqBody, _ := io.ReadAll(req.Body)

	entry := &harhar.Entry{
		Start:      ex.Timestamp.Format(time.RFC3339),
		Connection: ex.ID,
		Request: harhar.Request{
			Method:      req.Method,
			URL:         requestTarget(ex.RequestBytes, rootURL),
			HTTPVersion: req.Proto,
			Headers:     harHeaders(req.Header),
			HeadersSize: -1,
			BodySize:    len(reqBody),
			Body:        harBody(reqBody, req.Header.Get("Content-Type")),
		},
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(ex.ResponseBytes)), req)
	if err != nil {
		entry.Response = harhar.Response{StatusCode: 0, HeadersSize: -1, BodySize: -1}
		return entry, true
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	entry.Response = harhar.Response{
		StatusCode:  resp.StatusCode,
		StatusText:  http.StatusText(resp.StatusCode),
		HTTPVersion: resp.Proto,
		Headers:     harHeaders(resp.Header),
		RedirectURL: resp.Header.Get("Location"),
		HeadersSize: -1,
		BodySize:    len(respBody),
		Body:        harResponseBody(respBody, resp.Header.Get("Content-Type")),
	}
	return entry, true
}

func harHeaders(h http.Header) []harhar.NameValuePair {
	out := make([]harhar.NameValuePair, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, harhar.NameValuePair{Name: name, Value: redact.Value(name, v)})
		}
	}
	return out
}

func harBody(body []byte, mime string) harhar.BodyType {
	if len(body) == 0 {
		return harhar.BodyType{}
	}
	return harhar.BodyType{MIMEType: mime, Content: string(body)}
}

func harResponseBody(body []byte, mime string) harhar.BodyResponseType {
	b := harhar.BodyResponseType{Size: len(body), MIMEType: mime}
	if len(body) == 0 {
		return b
	}
	if utf8.Valid(body) {
		b.Content = string(body)
	} else {
		b.Content = base64.StdEncoding.EncodeToString(body)
		b.Encoding = "base64"
	}
	return b
}
