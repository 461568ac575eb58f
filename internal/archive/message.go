package archive

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/teovin/scoop/internal/domain"
)

// renderResponse serializes a structured response message to HTTP/1.1 wire
// form: status line, ordered headers, blank line, body. parseResponse is its
// exact inverse, so synthesized exchanges survive archiving byte-faithfully.
func renderResponse(m *domain.Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", m.Proto, m.StatusCode, m.StatusText)
	for _, h := range m.Headers {
		buf.WriteString(h.Name + ": " + h.Value + "\r\n")
	}
	buf.WriteString("\r\n")
	buf.Write(m.Body)
	return buf.Bytes()
}

func parseResponse(b []byte) (*domain.Message, error) {
	head, body, found := bytes.Cut(b, []byte("\r\n\r\n"))
	if !found {
		return nil, fmt.Errorf("missing header terminator")
	}
	lines := strings.Split(string(head), "\r\n")
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 {
		return nil, fmt.Errorf("malformed status line %q", lines[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("malformed status code %q", parts[1])
	}
	m := &domain.Message{
		Proto:      parts[0],
		StatusCode: code,
	}
	if len(parts) == 3 {
		m.StatusText = parts[2]
	}
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		m.Headers = append(m.Headers, domain.HeaderField{
			Name:  name,
			Value: strings.TrimSpace(value),
		})
	}
	if len(body) > 0 {
		m.Body = body
	}
	return m, nil
}

// requestTarget recovers an absolute URI from raw request bytes, joining a
// relative request target with the Host header under the capture's scheme.
// Best effort: interop metadata only, never load-bearing for the round trip.
func requestTarget(raw []byte, rootURL string) string {
	head, _, _ := bytes.Cut(raw, []byte("\r\n\r\n"))
	lines := strings.Split(string(head), "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		return ""
	}
	target := fields[1]
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	host := ""
	for _, line := range lines[1:] {
		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(name, "Host") {
			host = strings.TrimSpace(value)
			break
		}
	}
	if host == "" {
		return ""
	}
	scheme := "https"
	if strings.HasPrefix(rootURL, "http://") {
		scheme = "http"
	}
	return scheme + "://" + host + target
}
