package warc

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	records := []*Record{
		{
			Type:        TypeRequest,
			RecordID:    "urn:test:1",
			Date:        ts,
			TargetURI:   "https://example.com/",
			SessionID:   "abc123",
			ContentType: "application/http; msgtype=request",
			Block:       []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"),
		},
		{
			Type:         TypeResponse,
			RecordID:     "urn:test:2",
			Date:         ts.Add(120 * time.Millisecond),
			TargetURI:    "https://example.com/",
			ConcurrentTo: "urn:test:1",
			SessionID:    "abc123",
			ContentType:  "application/http; msgtype=response",
			Block:        []byte("HTTP/1.1 200 OK\r\n\r\nbody with\r\nCRLF inside"),
		},
	}

	var buf bytes.Buffer
	for _, r := range records {
		if err := Write(&buf, r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := ReadAll(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i, want := range records {
		r := got[i]
		if r.Type != want.Type || r.RecordID != want.RecordID || r.SessionID != want.SessionID ||
			r.TargetURI != want.TargetURI || r.ConcurrentTo != want.ConcurrentTo || r.ContentType != want.ContentType {
			t.Fatalf("record %d header mismatch: %+v", i, r)
		}
		if !r.Date.Equal(want.Date) {
			t.Fatalf("record %d date mismatch: %v != %v", i, r.Date, want.Date)
		}
		if !bytes.Equal(r.Block, want.Block) {
			t.Fatalf("record %d block mismatch: %q", i, r.Block)
		}
	}
}

func TestReadEmptyInput(t *testing.T) {
	got, err := ReadAll(strings.NewReader(""))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty input should yield no records, got %v %v", got, err)
	}
}

func TestReadUnknownVersion(t *testing.T) {
	_, err := ReadAll(strings.NewReader("WARC/0.18\r\nWARC-Type: request\r\n\r\n"))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestReadMissingContentLength(t *testing.T) {
	in := "WARC/1.1\r\nWARC-Type: request\r\nWARC-Record-ID: <urn:x>\r\n\r\n"
	_, err := ReadAll(strings.NewReader(in))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestReadBadContentLength(t *testing.T) {
	in := "WARC/1.1\r\nContent-Length: banana\r\n\r\n"
	if _, err := ReadAll(strings.NewReader(in)); err == nil {
		t.Fatalf("bad length must fail")
	}
}

func TestReadTruncatedBlock(t *testing.T) {
	in := "WARC/1.1\r\nWARC-Type: response\r\nContent-Length: 50\r\n\r\nshort"
	_, err := ReadAll(strings.NewReader(in))
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FormatError for truncated block, got %v", err)
	}
}

func TestReadSkipsUnknownExtensionFields(t *testing.T) {
	in := "WARC/1.1\r\n" +
		"WARC-Type: resource\r\n" +
		"WARC-Record-ID: <urn:x:1>\r\n" +
		"WARC-Date: 2026-03-14T09:26:53Z\r\n" +
		"WARC-Block-Digest: sha1:deadbeef\r\n" +
		"Content-Length: 2\r\n" +
		"\r\nhi\r\n\r\n"
	got, err := ReadAll(strings.NewReader(in))
	if err != nil {
		t.Fatalf("unknown fields must be skipped: %v", err)
	}
	if len(got) != 1 || string(got[0].Block) != "hi" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestWriteDateIsUTC(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	var buf bytes.Buffer
	err := Write(&buf, &Record{
		Type:     TypeWarcinfo,
		RecordID: "urn:x",
		Date:     time.Date(2026, 1, 2, 3, 4, 5, 0, loc),
		Block:    nil,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "WARC-Date: 2026-01-02T02:04:05Z\r\n") {
		t.Fatalf("date not normalized to UTC:\n%s", buf.String())
	}
}
