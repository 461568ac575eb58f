package domain

import "time"

// Container is the in-memory model of a packaged archive: logical file paths
// mapped to payloads, the list of navigable pages, and optional provenance
// carried as a metadata-extras block.
type Container struct {
	Files      map[string][]byte
	Pages      []PageDescriptor
	Provenance *Provenance
}

// PageDescriptor is one navigable page of the archive. The first descriptor
// is always the capture's root page.
type PageDescriptor struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"ts"`
	Title     string    `json:"title,omitempty"`
}
