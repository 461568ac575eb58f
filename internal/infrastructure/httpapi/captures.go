package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/teovin/scoop/internal/capture"
	"github.com/teovin/scoop/internal/domain"
	"github.com/teovin/scoop/internal/infrastructure/config"
	"github.com/teovin/scoop/pkg/shared/id"
)

// RunnerFunc executes one capture to completion. The server injects the real
// proxy+browser runner; tests inject fakes.
type RunnerFunc func(ctx context.Context, c *capture.Capture, onEvent capture.EventFunc) (domain.State, error)

// CaptureService tracks captures started over the API, from submission
// through terminal state, and keeps finished aggregates around for archive
// and HAR export.
type CaptureService struct {
	base    config.Config
	run     RunnerFunc
	logger  *zerolog.Logger
	monitor *MonitorHub

	mu    sync.RWMutex
	jobs  map[string]*captureJob
	order []string
}

type captureJob struct {
	id        string
	cap       *capture.Capture
	startedAt time.Time

	mu   sync.Mutex
	done bool
	err  error
}

func NewCaptureService(base config.Config, run RunnerFunc, logger *zerolog.Logger, monitor *MonitorHub) *CaptureService {
	return &CaptureService{
		base:    base,
		run:     run,
		logger:  logger,
		monitor: monitor,
		jobs:    make(map[string]*captureJob),
	}
}

// Start validates the target, registers a job and runs the capture in the
// background. The returned id addresses the job on every other endpoint.
func (s *CaptureService) Start(url string, cfg config.Config) (string, error) {
	if err := config.ValidateURL(url); err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	j := &captureJob{
		id:        id.New(),
		cap:       capture.New(url, cfg),
		startedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.order = append(s.order, j.id)
	s.mu.Unlock()

	go s.execute(j)
	return j.id, nil
}

func (s *CaptureService) execute(j *captureJob) {
	onEvent := func(event, detail string) {
		s.monitor.Broadcast(MonitorEvent{Type: event, Capture: j.id, Detail: detail})
	}
	state, err := s.run(context.Background(), j.cap, onEvent)
	j.mu.Lock()
	j.done = true
	j.err = err
	j.mu.Unlock()
	if err != nil {
		s.logger.Error().Err(err).Str("capture", j.id).Msg("capture failed")
		return
	}
	s.logger.Info().Str("capture", j.id).Str("state", string(state)).Msg("capture finished")
}

// Get returns the job for id, or nil.
func (s *CaptureService) Get(jobID string) *captureJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[jobID]
}

// List returns all jobs in submission order.
func (s *CaptureService) List() []*captureJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*captureJob, 0, len(s.order))
	for _, jobID := range s.order {
		out = append(out, s.jobs[jobID])
	}
	return out
}

// BaseConfig is the server-wide capture configuration requests start from.
func (s *CaptureService) BaseConfig() config.Config { return s.base }

func (j *captureJob) snapshot() captureView {
	j.mu.Lock()
	err := j.err
	j.mu.Unlock()
	v := captureView{
		ID:        j.id,
		URL:       j.cap.URL,
		State:     string(j.cap.State()),
		StartedAt: j.startedAt,
		Exchanges: j.cap.Store.Len(),
		Generated: len(j.cap.GeneratedSnapshot()),
		TotalSize: j.cap.TotalSize(),
	}
	if err != nil {
		v.Error = err.Error()
	}
	return v
}

type captureView struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
	Exchanges int       `json:"exchanges"`
	Generated int       `json:"generated"`
	TotalSize int64     `json:"totalSize"`
	Error     string    `json:"error,omitempty"`
}
