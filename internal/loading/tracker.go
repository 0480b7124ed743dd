// Package loading models the lifecycle of one user-triggered asynchronous fetch:
// progress reporting, a timeout watchdog and a bounded retry budget.
package loading

import (
	"sync"
	"time"
)

// Status is the coarse lifecycle phase of a tracked operation.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3

	TimeoutMessage    = "operation timed out"
	MaxRetriesMessage = "max retries exceeded"
)

// State is a point-in-time view of a tracked operation.
// IsLoading implies Error is nil. Seq grows with every change, so consumers can
// drop a snapshot older than one they already hold.
type State struct {
	Seq        uint64    `json:"seq"`
	Status     Status    `json:"status"`
	IsLoading  bool      `json:"is_loading"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message"`
	Error      *string   `json:"error"`
	RetryCount int       `json:"retry_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ErrorMessage returns the error text or "" when there is none.
func (s State) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Timer is the cancellable handle returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Tracker holds the loading state of one operation. It is safe for concurrent use;
// callbacks and listeners run outside the internal lock.
type Tracker struct {
	mu         sync.Mutex
	state      State
	timeout    time.Duration
	maxRetries int
	onError    func(message string)
	onSuccess  func()
	afterFunc  AfterFunc
	now        func() time.Time

	watchdog   Timer
	generation uint64
	seq        uint64
	closed     bool

	nextListener int
	listeners    map[int]func(State)
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithTimeout sets the watchdog duration.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithMaxRetries caps the number of Retry calls per operation.
func WithMaxRetries(n int) Option {
	return func(t *Tracker) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithOnError registers a callback fired on every SetError.
func WithOnError(fn func(message string)) Option {
	return func(t *Tracker) {
		t.onError = fn
	}
}

// WithOnSuccess registers a callback fired on every SetSuccess.
func WithOnSuccess(fn func()) Option {
	return func(t *Tracker) {
		t.onSuccess = fn
	}
}

// WithAfterFunc replaces the timer implementation, primarily for tests.
func WithAfterFunc(fn AfterFunc) Option {
	return func(t *Tracker) {
		if fn != nil {
			t.afterFunc = fn
		}
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker returns a tracker in the idle state.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		afterFunc:  realAfterFunc,
		now:        time.Now,
		listeners:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.state = t.idleState()
	return t
}

func (t *Tracker) idleState() State {
	return State{Status: StatusIdle, UpdatedAt: t.now()}
}

// MaxRetries returns the retry budget.
func (t *Tracker) MaxRetries() int {
	return t.maxRetries
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyState(t.state)
}

// Subscribe registers fn to receive every state change and returns a function
// that removes it. Changes committed concurrently may reach fn out of order;
// compare State.Seq to discard stale ones.
func (t *Tracker) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	t.mu.Lock()
	id := t.nextListener
	t.nextListener++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// StartLoading begins a new operation, clearing progress, error and retry count.
func (t *Tracker) StartLoading(message string) {
	t.mu.Lock()
	t.state = State{
		Status:    StatusLoading,
		IsLoading: true,
		Message:   message,
		UpdatedAt: t.now(),
	}
	t.armWatchdogLocked()
	t.commit(t.mu.Unlock, nil)
}

// UpdateProgress clamps value to [0,100] and records it when loading. Progress
// never moves backwards within one attempt. An empty message keeps the current one.
func (t *Tracker) UpdateProgress(value int, message string) {
	t.mu.Lock()
	if t.state.Status != StatusLoading {
		t.mu.Unlock()
		return
	}
	value = clamp(value)
	if value > t.state.Progress {
		t.state.Progress = value
	}
	if message != "" {
		t.state.Message = message
	}
	t.state.UpdatedAt = t.now()
	t.commit(t.mu.Unlock, nil)
}

// SetError moves to the error state and fires the error callback.
func (t *Tracker) SetError(message string) {
	t.mu.Lock()
	t.setErrorLocked(message)
	cb := t.onError
	t.commit(t.mu.Unlock, func() {
		if cb != nil {
			cb(message)
		}
	})
}

func (t *Tracker) setErrorLocked(message string) {
	t.stopWatchdogLocked()
	msg := message
	t.state.Status = StatusError
	t.state.IsLoading = false
	t.state.Progress = 0
	t.state.Error = &msg
	t.state.UpdatedAt = t.now()
}

// SetSuccess completes the operation and fires the success callback.
func (t *Tracker) SetSuccess() {
	t.mu.Lock()
	t.stopWatchdogLocked()
	t.state.Status = StatusSuccess
	t.state.IsLoading = false
	t.state.Progress = 100
	t.state.Error = nil
	t.state.UpdatedAt = t.now()
	cb := t.onSuccess
	t.commit(t.mu.Unlock, func() {
		if cb != nil {
			cb()
		}
	})
}

// Retry re-enters loading unless the retry budget is spent, in which case the
// operation fails with MaxRetriesMessage. It reports whether a new attempt began.
func (t *Tracker) Retry() bool {
	t.mu.Lock()
	if t.state.RetryCount >= t.maxRetries {
		t.mu.Unlock()
		t.SetError(MaxRetriesMessage)
		return false
	}
	t.state.RetryCount++
	t.state.Status = StatusLoading
	t.state.IsLoading = true
	t.state.Progress = 0
	t.state.Error = nil
	t.state.UpdatedAt = t.now()
	t.armWatchdogLocked()
	t.commit(t.mu.Unlock, nil)
	return true
}

// Reset returns to idle from any state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.stopWatchdogLocked()
	t.state = t.idleState()
	t.commit(t.mu.Unlock, nil)
}

// Close cancels a pending watchdog and stops notifying listeners. The tracked
// operation itself keeps running; its later updates are still recorded.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopWatchdogLocked()
	t.closed = true
	clear(t.listeners)
}

func (t *Tracker) armWatchdogLocked() {
	t.stopWatchdogLocked()
	if t.closed {
		return
	}
	gen := t.generation
	t.watchdog = t.afterFunc(t.timeout, func() { t.expire(gen) })
}

func (t *Tracker) stopWatchdogLocked() {
	t.generation++
	if t.watchdog != nil {
		t.watchdog.Stop()
		t.watchdog = nil
	}
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation || t.state.Status != StatusLoading || t.state.Progress >= 100 {
		t.mu.Unlock()
		return
	}
	t.watchdog = nil
	t.setErrorLocked(TimeoutMessage)
	cb := t.onError
	t.commit(t.mu.Unlock, func() {
		if cb != nil {
			cb(TimeoutMessage)
		}
	})
}

// commit stamps the next Seq, snapshots state and listeners, releases the
// lock, then runs the callback and notifies listeners.
func (t *Tracker) commit(unlock func(), callback func()) {
	t.seq++
	t.state.Seq = t.seq
	snapshot := copyState(t.state)
	var listeners []func(State)
	if !t.closed {
		listeners = make([]func(State), 0, len(t.listeners))
		for _, fn := range t.listeners {
			listeners = append(listeners, fn)
		}
	}
	unlock()

	if callback != nil {
		callback()
	}
	for _, fn := range listeners {
		fn(snapshot)
	}
}

func copyState(s State) State {
	if s.Error != nil {
		msg := *s.Error
		s.Error = &msg
	}
	return s
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
