package archive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
)

func TestExportHAR(t *testing.T) {
	base := time.Date(2026, 2, 11, 16, 20, 30, 0, time.UTC)
	exchanges := []*domain.Exchange{
		{
			ID:        "sess-a",
			Timestamp: base,
			RequestBytes: []byte("GET /index.html HTTP/1.1\r\n" +
				"Host: example.com\r\n" +
				"Authorization: Bearer sekrit\r\n\r\n"),
			ResponseBytes: []byte("HTTP/1.1 200 OK\r\n" +
				"Content-Type: text/html\r\n" +
				"Content-Length: 5\r\n\r\nhello"),
		},
		{
			// unparsable request bytes are skipped, not fatal
			ID:            "sess-b",
			Timestamp:     base.Add(time.Second),
			RequestBytes:  []byte{0x00, 0x01, 0x02},
			ResponseBytes: []byte("HTTP/1.1 200 OK\r\n\r\n"),
		},
	}
	c := capture.Restore("https://example.com", exchanges, nil, nil)

	har, err := ExportHAR(c)
	require.NoError(t, err)

	require.Len(t, har.Log.Entries, 1)
	entry := har.Log.Entries[0]
	assert.Equal(t, "GET", entry.Request.Method)
	assert.Equal(t, "https://example.com/index.html", entry.Request.URL)
	assert.Equal(t, "sess-a", entry.Connection)
	assert.Equal(t, 200, entry.Response.StatusCode)
	assert.Equal(t, "hello", entry.Response.Body.Content)

	for _, h := range entry.Request.Headers {
		if h.Name == "Authorization" {
			assert.Equal(t, "***", h.Value, "credential header must be masked")
		}
	}

	require.Len(t, har.Log.Pages, 1)
	assert.Equal(t, "https://example.com", har.Log.Pages[0].Title)
	assert.Equal(t, "page_0", entry.PageRef)
}

func TestExportHARRejectsUnfinished(t *testing.T) {
	c := capture.New("https://example.com", defaultTestConfig())
	_, err := ExportHAR(c)
	var eerr *EncodeError
	require.ErrorAs(t, err, &eerr)
}

func TestExportHAROrphanResponse(t *testing.T) {
	// request parses, response bytes are broken: entry kept with zero response
	exchanges := []*domain.Exchange{{
		ID:            "s",
		Timestamp:     time.Now().UTC(),
		RequestBytes:  []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"),
		ResponseBytes: []byte("not-http"),
	}}
	c := capture.Restore("https://example.com", exchanges, nil, nil)
	har, err := ExportHAR(c)
	require.NoError(t, err)
	require.Len(t, har.Log.Entries, 1)
	assert.Equal(t, 0, har.Log.Entries[0].Response.StatusCode)
}
