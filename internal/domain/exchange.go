package domain

import (
	"strconv"
	"time"
)

// Direction tags which side of an exchange a byte segment belongs to.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// HeaderField is one header line. A slice of fields preserves wire order,
// which http.Header does not.
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Message is the structured view of one side of an exchange. Only exchanges
// synthesized in-process carry it; intercepted exchanges keep raw bytes only.
type Message struct {
	Proto      string        `json:"proto"`
	Method     string        `json:"method,omitempty"`     // request side
	URL        string        `json:"url,omitempty"`        // request side
	StatusCode int           `json:"statusCode,omitempty"` // response side
	StatusText string        `json:"statusText,omitempty"` // response side
	Headers    []HeaderField `json:"headers,omitempty"`
	Body       []byte        `json:"body,omitempty"`
}

// Exchange is one HTTP request paired with its response as observed on the
// wire. ID is the correlation key assigned by the proxy transport per logical
// connection; the transport reuses it for subsequent pairs on the same
// connection, so several exchanges may share an ID.
type Exchange struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	RequestBytes  []byte    `json:"requestBytes,omitempty"`
	ResponseBytes []byte    `json:"responseBytes,omitempty"`
	Request       *Message  `json:"request,omitempty"`
	Response      *Message  `json:"response,omitempty"`
}

// Size is the number of raw bytes held by both buffers.
func (e *Exchange) Size() int64 {
	return int64(len(e.RequestBytes) + len(e.ResponseBytes))
}

// GeneratedExchange is an exchange synthesized by the capture controller
// rather than intercepted by the proxy (e.g. a full-page screenshot).
// Entry-point exchanges are surfaced as navigable pages in the archive.
type GeneratedExchange struct {
	Exchange
	IsEntryPoint bool `json:"isEntryPoint"`
}

// NewGeneratedExchange builds a synthesized exchange against a synthetic URL.
// The same construction is used when reading such an exchange back from an
// archive, so a round trip reproduces it field for field.
func NewGeneratedExchange(id string, ts time.Time, url, contentType string, body []byte, entryPoint bool) GeneratedExchange {
	return GeneratedExchange{
		Exchange: Exchange{
			ID:        id,
			Timestamp: ts,
			Request: &Message{
				Proto:  "HTTP/1.1",
				Method: "GET",
				URL:    url,
			},
			Response: &Message{
				Proto:      "HTTP/1.1",
				StatusCode: 200,
				StatusText: "OK",
				Headers: []HeaderField{
					{Name: "Content-Type", Value: contentType},
					{Name: "Content-Length", Value: strconv.Itoa(len(body))},
				},
				Body: body,
			},
		},
		IsEntryPoint: entryPoint,
	}
}
