package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/teovin/scoop/internal/domain"
	obs "github.com/teovin/scoop/internal/infrastructure/observability"
)

const containerFormat = "scoop-wacz-1.0"

// descriptor is the datapackage.json model: package-level info, one digest
// entry per contained file, and the optional metadata-extras block.
type descriptor struct {
	Profile   string            `json:"profile"`
	Software  string            `json:"software"`
	Format    string            `json:"format"`
	Created   string            `json:"created"`
	Resources []resourceEntry   `json:"resources"`
	Extras    *descriptorExtras `json:"extras,omitempty"`
}

type resourceEntry struct {
	Path  string `json:"path"`
	Hash  string `json:"hash"` // "xxh64:<hex>"
	Bytes int    `json:"bytes"`
}

type descriptorExtras struct {
	Provenance *domain.Provenance `json:"provenance,omitempty"`
}

type pagesHeader struct {
	Format string `json:"format"`
	ID     string `json:"id"`
}

// WriteContainer packages the container model into a single distributable
// zip: the record file and raw payloads at their logical paths, the page
// list as JSON lines, and the descriptor with a digest per file.
func WriteContainer(w io.Writer, ct *domain.Container) error {
	zw := zip.NewWriter(w)

	paths := make([]string, 0, len(ct.Files))
	for p := range ct.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var resources []resourceEntry
	writeFile := func(path string, data []byte) error {
		f, err := zw.Create(path)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			return err
		}
		resources = append(resources, resourceEntry{
			Path:  path,
			Hash:  fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)),
			Bytes: len(data),
		})
		return nil
	}

	for _, p := range paths {
		if err := writeFile(p, ct.Files[p]); err != nil {
			return err
		}
	}

	var pages bytes.Buffer
	header, _ := json.Marshal(pagesHeader{Format: "json-pages-1.0", ID: "pages"})
	pages.Write(header)
	pages.WriteByte('\n')
	for _, p := range ct.Pages {
		line, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pages.Write(line)
		pages.WriteByte('\n')
	}
	if err := writeFile(PagesPath, pages.Bytes()); err != nil {
		return err
	}

	desc := descriptor{
		Profile:   "data-package",
		Software:  obs.Name + "/" + obs.Version,
		Format:    containerFormat,
		Created:   time.Now().UTC().Format(time.RFC3339),
		Resources: resources,
	}
	if ct.Provenance != nil {
		desc.Extras = &descriptorExtras{Provenance: ct.Provenance}
	}
	db, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	f, err := zw.Create(DescriptorPath)
	if err != nil {
		return err
	}
	if _, err := f.Write(db); err != nil {
		return err
	}
	return zw.Close()
}

// ReadContainer parses container bytes back into the model, validating the
// descriptor, the page list and every recorded digest.
func ReadContainer(b []byte) (*domain.Container, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, &DecodeError{Reason: "not a zip container", Err: err}
	}

	all := make(map[string][]byte, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, &DecodeError{Reason: "reading " + zf.Name, Err: err}
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &DecodeError{Reason: "reading " + zf.Name, Err: err}
		}
		all[zf.Name] = data
	}

	db, ok := all[DescriptorPath]
	if !ok {
		return nil, &DecodeError{Reason: "missing " + DescriptorPath}
	}
	var desc descriptor
	if err := json.Unmarshal(db, &desc); err != nil {
		return nil, &DecodeError{Reason: "malformed " + DescriptorPath, Err: err}
	}
	if desc.Format != containerFormat {
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported container format %q", desc.Format)}
	}
	for _, res := range desc.Resources {
		data, ok := all[res.Path]
		if !ok {
			return nil, &DecodeError{Reason: "missing resource " + res.Path}
		}
		if got := fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)); got != res.Hash {
			return nil, &DecodeError{Reason: fmt.Sprintf("digest mismatch for %s", res.Path)}
		}
	}

	pb, ok := all[PagesPath]
	if !ok {
		return nil, &DecodeError{Reason: "missing " + PagesPath}
	}
	var pages []domain.PageDescriptor
	for _, line := range strings.Split(string(pb), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, `"url"`) {
			continue
		}
		var p domain.PageDescriptor
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, &DecodeError{Reason: "malformed page descriptor", Err: err}
		}
		pages = append(pages, p)
	}

	ct := &domain.Container{Files: make(map[string][]byte), Pages: pages}
	for p, data := range all {
		if p == DescriptorPath || p == PagesPath {
			continue
		}
		ct.Files[p] = data
	}
	if desc.Extras != nil {
		ct.Provenance = desc.Extras.Provenance
	}
	return ct, nil
}
