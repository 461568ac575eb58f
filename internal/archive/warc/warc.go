// Package warc reads and writes WARC/1.1 record envelopes: a version line, a
// named-field header block terminated by a blank line, a block of exactly
// Content-Length bytes, and a two-CRLF record separator. Concatenated request
// and response records reproduce the captured wire bytes verbatim.
package warc

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const Version = "WARC/1.1"

// Type is the WARC-Type of a record.
type Type string

const (
	TypeWarcinfo Type = "warcinfo"
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
	TypeResource Type = "resource"
)

// Record is one WARC record. SessionID is carried in the extension field
// WARC-Session-ID so the proxy correlation key survives a round trip.
type Record struct {
	Type         Type
	RecordID     string
	Date         time.Time
	TargetURI    string
	ConcurrentTo string
	SessionID    string
	ContentType  string
	Block        []byte
}

// FormatError reports a malformed or unsupported envelope.
type FormatError struct {
	Offset int // record index at which parsing failed
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("warc: record %d: %s", e.Offset, e.Reason)
}

// Write serializes one record. The header block is CRLF-delimited and the
// body length is declared up front, per the standard envelope.
func Write(w io.Writer, r *Record) error {
	var sb strings.Builder
	sb.WriteString(Version + "\r\n")
	sb.WriteString("WARC-Type: " + string(r.Type) + "\r\n")
	sb.WriteString("WARC-Record-ID: <" + r.RecordID + ">\r\n")
	sb.WriteString("WARC-Date: " + r.Date.UTC().Format(time.RFC3339Nano) + "\r\n")
	if r.TargetURI != "" {
		sb.WriteString("WARC-Target-URI: " + r.TargetURI + "\r\n")
	}
	if r.ConcurrentTo != "" {
		sb.WriteString("WARC-Concurrent-To: <" + r.ConcurrentTo + ">\r\n")
	}
	if r.SessionID != "" {
		sb.WriteString("WARC-Session-ID: " + r.SessionID + "\r\n")
	}
	if r.ContentType != "" {
		sb.WriteString("Content-Type: " + r.ContentType + "\r\n")
	}
	sb.WriteString("Content-Length: " + strconv.Itoa(len(r.Block)) + "\r\n")
	sb.WriteString("\r\n")
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}
	if _, err := w.Write(r.Block); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n\r\n")
	return err
}

// ReadAll parses every record in the stream, preserving order and raw block
// bytes. Structural violations (unknown version, malformed header lines,
// missing or invalid Content-Length) surface as *FormatError.
func ReadAll(r io.Reader) ([]*Record, error) {
	br := bufio.NewReader(r)
	var records []*Record
	for {
		line, err := readLine(br)
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" { // tolerate extra separators between records
			continue
		}
		if line != Version {
			return nil, &FormatError{Offset: len(records), Reason: fmt.Sprintf("unknown version %q", line)}
		}
		rec, err := readRecord(br, len(records))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func readRecord(br *bufio.Reader, idx int) (*Record, error) {
	rec := &Record{}
	length := -1
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, &FormatError{Offset: idx, Reason: "truncated header block"}
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &FormatError{Offset: idx, Reason: fmt.Sprintf("malformed header line %q", line)}
		}
		value = strings.TrimSpace(value)
		switch name {
		case "WARC-Type":
			rec.Type = Type(value)
		case "WARC-Record-ID":
			rec.RecordID = trimAngle(value)
		case "WARC-Date":
			ts, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, &FormatError{Offset: idx, Reason: fmt.Sprintf("bad WARC-Date %q", value)}
			}
			rec.Date = ts.UTC()
		case "WARC-Target-URI":
			rec.TargetURI = value
		case "WARC-Concurrent-To":
			rec.ConcurrentTo = trimAngle(value)
		case "WARC-Session-ID":
			rec.SessionID = value
		case "Content-Type":
			rec.ContentType = value
		case "Content-Length":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, &FormatError{Offset: idx, Reason: fmt.Sprintf("bad Content-Length %q", value)}
			}
			length = n
		default:
			// unknown extension fields are skipped, not fatal
		}
	}
	if length < 0 {
		return nil, &FormatError{Offset: idx, Reason: "missing Content-Length"}
	}
	rec.Block = make([]byte, length)
	if _, err := io.ReadFull(br, rec.Block); err != nil {
		return nil, &FormatError{Offset: idx, Reason: "block shorter than declared length"}
	}
	return rec, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		if err != io.EOF {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func trimAngle(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
}
