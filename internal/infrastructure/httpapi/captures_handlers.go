package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/teovin/scoop/internal/archive"
	"github.com/teovin/scoop/internal/infrastructure/config"
)

type createCaptureRequest struct {
	URL     string          `json:"url"`
	Options *captureOptions `json:"options,omitempty"`
}

// captureOptions are the per-request overrides accepted on top of the
// server's base configuration. Pointers distinguish "unset" from zero.
type captureOptions struct {
	MaxSize      *int64 `json:"maxSize,omitempty"`
	Screenshot   *bool  `json:"screenshot,omitempty"`
	RunBehaviors *bool  `json:"runBehaviors,omitempty"`
	AutoScroll   *bool  `json:"autoScroll,omitempty"`
	Autoplay     *bool  `json:"autoplay,omitempty"`
	IncludeRaw   *bool  `json:"includeRaw,omitempty"`
}

func (o *captureOptions) apply(cfg config.Config) config.Config {
	if o == nil {
		return cfg
	}
	if o.MaxSize != nil {
		cfg.MaxSize = *o.MaxSize
	}
	if o.Screenshot != nil {
		cfg.Screenshot = *o.Screenshot
	}
	if o.RunBehaviors != nil {
		cfg.RunBehaviors = *o.RunBehaviors
	}
	if o.AutoScroll != nil {
		cfg.AutoScroll = *o.AutoScroll
	}
	if o.Autoplay != nil {
		cfg.Autoplay = *o.Autoplay
	}
	if o.IncludeRaw != nil {
		cfg.IncludeRaw = *o.IncludeRaw
	}
	return cfg
}

func (d *Deps) handleCaptures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs := d.Captures.List()
		views := make([]captureView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, j.snapshot())
		}
		writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req createCaptureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", err.Error())
			return
		}
		cfg := req.Options.apply(d.Captures.BaseConfig())
		captureID, err := d.Captures.Start(req.URL, cfg)
		if err != nil {
			var verr *config.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, "invalid_option", verr.Error(), verr.Field)
				return
			}
			writeError(w, http.StatusInternalServerError, "capture_start", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"id": captureID})
	default:
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
	}
}

// handleCaptureByID serves /api/captures/{id} and its sub-resources
// (/archive, /har, /logs).
func (d *Deps) handleCaptureByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/captures/")
	captureID, sub, _ := strings.Cut(rest, "/")
	j := d.Captures.Get(captureID)
	if j == nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown capture id", captureID)
		return
	}
	switch sub {
	case "":
		writeJSON(w, http.StatusOK, j.snapshot())
	case "logs":
		writeJSON(w, http.StatusOK, j.cap.LogSnapshot())
	case "archive":
		d.serveArchive(w, j)
	case "har":
		d.serveHAR(w, j)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown sub-resource", sub)
	}
}

func (d *Deps) serveArchive(w http.ResponseWriter, j *captureJob) {
	if !j.cap.State().Archivable() {
		writeError(w, http.StatusConflict, "not_archivable",
			fmt.Sprintf("capture in state %s has no archive", j.cap.State()), nil)
		return
	}
	ct, err := archive.Encode(j.cap, j.cap.Config.IncludeRaw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error(), nil)
		return
	}
	var buf bytes.Buffer
	if err := archive.WriteContainer(&buf, ct); err != nil {
		writeError(w, http.StatusInternalServerError, "encode_failed", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.id+".wacz"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (d *Deps) serveHAR(w http.ResponseWriter, j *captureJob) {
	if !j.cap.State().Archivable() {
		writeError(w, http.StatusConflict, "not_archivable",
			fmt.Sprintf("capture in state %s has no archive", j.cap.State()), nil)
		return
	}
	har, err := archive.ExportHAR(j.cap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export_failed", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, har)
}
