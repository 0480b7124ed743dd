package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/veloigp/internal/loading"
	"github.com/charlesng35/veloigp/internal/models"
	"github.com/charlesng35/veloigp/internal/monitoring"
	"github.com/charlesng35/veloigp/internal/realtime"
	apperrors "github.com/charlesng35/veloigp/pkg/errors"
	"github.com/charlesng35/veloigp/pkg/logger"
)

// ErrNothingToRetry is returned by Retry before any refresh was started.
var ErrNothingToRetry = apperrors.New("NOTHING_TO_RETRY", "No report refresh to retry", http.StatusConflict)

// ReportSource is the part of DataService the refresh job needs.
type ReportSource interface {
	Report(ctx context.Context, start, end time.Time) (Result[models.Report], error)
}

// RefreshConfig tunes the loading tracker behind report refreshes.
type RefreshConfig struct {
	Timeout    time.Duration
	MaxRetries int
	// TrackerOptions are appended after the timeout and retry options.
	TrackerOptions []loading.Option
}

// RefreshState is the tracker state enriched with the job it describes.
type RefreshState struct {
	loading.State
	JobID  string                 `json:"job_id,omitempty"`
	Start  string                 `json:"start,omitempty"`
	End    string                 `json:"end,omitempty"`
	Result *Result[models.Report] `json:"result,omitempty"`
}

type refreshJob struct {
	id      string
	start   time.Time
	end     time.Time
	attempt uint64
	cancel  context.CancelFunc
}

// RefreshService runs one tracked background report fetch at a time and
// pushes every state change to the loading stream.
type RefreshService struct {
	reports     ReportSource
	tracker     *loading.Tracker
	broadcaster realtime.Broadcaster
	log         *zap.Logger

	mu      sync.Mutex
	job     *refreshJob
	attempt uint64
	result  *Result[models.Report]

	wg sync.WaitGroup

	publishMu sync.Mutex
	published uint64
}

// NewRefreshService constructs the service. broadcaster may be nil.
func NewRefreshService(reports ReportSource, cfg RefreshConfig, broadcaster realtime.Broadcaster) *RefreshService {
	s := &RefreshService{
		reports:     reports,
		broadcaster: broadcaster,
		log:         logger.WithModule("refresh"),
	}

	opts := []loading.Option{
		loading.WithTimeout(cfg.Timeout),
		loading.WithMaxRetries(cfg.MaxRetries),
		loading.WithOnError(s.onError),
	}
	opts = append(opts, cfg.TrackerOptions...)
	s.tracker = loading.NewTracker(opts...)
	s.tracker.Subscribe(s.onChange)
	return s
}

// Start begins a refresh for [start, end], superseding any running one.
func (s *RefreshService) Start(ctx context.Context, start, end time.Time) (RefreshState, error) {
	if err := validateRange(start, end); err != nil {
		return RefreshState{}, err
	}

	s.mu.Lock()
	s.cancelJobLocked()
	s.result = nil
	job := s.newJobLocked(start, end)
	s.mu.Unlock()

	s.tracker.StartLoading("Cargando reporte PBX")
	s.launch(job)
	return s.State(), nil
}

// Retry re-runs the last refresh while the retry budget lasts. Once exhausted
// the state turns into a "max retries exceeded" error and nothing is started.
func (s *RefreshService) Retry(ctx context.Context) (RefreshState, error) {
	s.mu.Lock()
	previous := s.job
	s.mu.Unlock()
	if previous == nil {
		return s.State(), ErrNothingToRetry
	}

	if !s.tracker.Retry() {
		return s.State(), nil
	}

	s.mu.Lock()
	s.cancelJobLocked()
	job := s.newJobLocked(previous.start, previous.end)
	job.id = previous.id
	s.mu.Unlock()

	s.launch(job)
	return s.State(), nil
}

// Reset abandons the current refresh and returns to idle.
func (s *RefreshService) Reset() RefreshState {
	s.mu.Lock()
	s.cancelJobLocked()
	s.job = nil
	s.result = nil
	s.mu.Unlock()

	s.tracker.Reset()
	return s.State()
}

// State returns the current refresh state.
func (s *RefreshService) State() RefreshState {
	state := RefreshState{State: s.tracker.Snapshot()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		state.JobID = s.job.id
		state.Start = s.job.start.Format(time.DateOnly)
		state.End = s.job.end.Format(time.DateOnly)
	}
	if s.result != nil {
		result := *s.result
		state.Result = &result
	}
	return state
}

// Close cancels the running job, disarms the watchdog and waits for the job to exit.
func (s *RefreshService) Close() {
	s.mu.Lock()
	s.cancelJobLocked()
	s.mu.Unlock()

	s.tracker.Close()
	s.wg.Wait()
}

func (s *RefreshService) newJobLocked(start, end time.Time) *refreshJob {
	s.attempt++
	job := &refreshJob{
		id:      uuid.NewString(),
		start:   start,
		end:     end,
		attempt: s.attempt,
	}
	s.job = job
	return job
}

func (s *RefreshService) cancelJobLocked() {
	if s.job != nil && s.job.cancel != nil {
		s.job.cancel()
	}
}

func (s *RefreshService) launch(job *refreshJob) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	job.cancel = cancel
	current := s.attempt == job.attempt
	s.mu.Unlock()
	if !current {
		cancel()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, job)
	}()
}

func (s *RefreshService) run(ctx context.Context, job *refreshJob) {
	s.tracker.UpdateProgress(10, "Conectando con la central")

	result, err := s.reports.Report(ctx, job.start, job.end)

	s.mu.Lock()
	if s.attempt != job.attempt || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.tracker.SetError(err.Error())
		return
	}

	// Success listeners never take s.mu.
	s.result = &result
	s.tracker.UpdateProgress(90, "Procesando datos")
	s.tracker.SetSuccess()
	s.mu.Unlock()
}

// onError stops the job whose attempt just failed, e.g. by watchdog timeout.
func (s *RefreshService) onError(message string) {
	s.mu.Lock()
	s.cancelJobLocked()
	s.mu.Unlock()
	s.log.Warn("report refresh failed", zap.String("error", message))
}

// onChange publishes tracker changes in Seq order; a snapshot that lost a race
// against a newer one is dropped.
func (s *RefreshService) onChange(state loading.State) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if state.Seq <= s.published {
		return
	}
	s.published = state.Seq

	monitoring.RecordLoadingTransition(string(state.Status), state.Message)
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastStream(realtime.StreamLoading, realtime.Message{
		Event: "state",
		Data:  state,
	})
}
