package loading

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualTimer struct {
	mu      sync.Mutex
	fn      func()
	d       time.Duration
	stopped bool
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	wasActive := !m.stopped
	m.stopped = true
	return wasActive
}

func (m *manualTimer) Fire() {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	fn()
}

type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{fn: f, d: d}
	m.timers = append(m.timers, timer)
	return timer
}

func (m *manualTimers) Last() *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	return m.timers[len(m.timers)-1]
}

func newManualTracker(opts ...Option) (*Tracker, *manualTimers) {
	timers := &manualTimers{}
	opts = append([]Option{WithAfterFunc(timers.AfterFunc)}, opts...)
	return NewTracker(opts...), timers
}

func TestStartProgressSuccess(t *testing.T) {
	successes := 0
	tracker, timers := newManualTracker(WithOnSuccess(func() { successes++ }))

	tracker.StartLoading("X")
	tracker.UpdateProgress(50, "")
	tracker.SetSuccess()

	state := tracker.Snapshot()
	require.Equal(t, StatusSuccess, state.Status)
	require.False(t, state.IsLoading)
	require.Equal(t, 100, state.Progress)
	require.Nil(t, state.Error)
	require.Equal(t, "X", state.Message)
	require.Equal(t, 1, successes)
	require.True(t, timers.Last().stopped, "success cancels the watchdog")
}

func TestProgressIsClamped(t *testing.T) {
	tracker, _ := newManualTracker()
	tracker.StartLoading("clamp")

	tracker.UpdateProgress(-20, "")
	require.Equal(t, 0, tracker.Snapshot().Progress)

	tracker.UpdateProgress(250, "almost")
	state := tracker.Snapshot()
	require.Equal(t, 100, state.Progress)
	require.Equal(t, "almost", state.Message)
}

func TestProgressNeverDecreasesWithinAttempt(t *testing.T) {
	tracker, _ := newManualTracker()
	tracker.StartLoading("monotonic")

	tracker.UpdateProgress(60, "")
	tracker.UpdateProgress(30, "")
	require.Equal(t, 60, tracker.Snapshot().Progress)
}

func TestProgressIgnoredUnlessLoading(t *testing.T) {
	tracker, _ := newManualTracker()

	tracker.UpdateProgress(40, "ignored")
	state := tracker.Snapshot()
	require.Equal(t, StatusIdle, state.Status)
	require.Zero(t, state.Progress)
	require.Empty(t, state.Message)
}

func TestSetErrorInvokesCallbackEachCall(t *testing.T) {
	var messages []string
	tracker, _ := newManualTracker(WithOnError(func(msg string) { messages = append(messages, msg) }))

	tracker.StartLoading("fetch")
	tracker.UpdateProgress(70, "")
	tracker.SetError("network down")
	tracker.SetError("still down")

	state := tracker.Snapshot()
	require.Equal(t, StatusError, state.Status)
	require.False(t, state.IsLoading)
	require.Zero(t, state.Progress)
	require.Equal(t, "still down", state.ErrorMessage())
	require.Equal(t, []string{"network down", "still down"}, messages)
}

func TestRetryExhaustion(t *testing.T) {
	var errs []string
	tracker, _ := newManualTracker(WithMaxRetries(3), WithOnError(func(msg string) { errs = append(errs, msg) }))
	tracker.StartLoading("report")

	for i := 1; i <= 3; i++ {
		tracker.SetError("boom")
		require.True(t, tracker.Retry())
		state := tracker.Snapshot()
		require.Equal(t, i, state.RetryCount)
		require.True(t, state.IsLoading)
		require.Nil(t, state.Error)
		require.Zero(t, state.Progress)
	}

	require.False(t, tracker.Retry())
	state := tracker.Snapshot()
	require.Equal(t, StatusError, state.Status)
	require.False(t, state.IsLoading)
	require.Equal(t, MaxRetriesMessage, state.ErrorMessage())
	require.Equal(t, 3, state.RetryCount)
	require.Equal(t, MaxRetriesMessage, errs[len(errs)-1])
}

func TestRetryResetsProgressAndRearmsWatchdog(t *testing.T) {
	tracker, timers := newManualTracker()
	tracker.StartLoading("report")
	first := timers.Last()
	tracker.UpdateProgress(80, "")

	require.True(t, tracker.Retry())
	require.True(t, first.stopped)
	require.NotSame(t, first, timers.Last())
	require.Zero(t, tracker.Snapshot().Progress)

	// A stale watchdog firing after the retry must not fail the new attempt.
	first.Fire()
	require.Equal(t, StatusLoading, tracker.Snapshot().Status)
}

func TestResetFromAnyState(t *testing.T) {
	cases := map[string]func(*Tracker){
		"loading": func(tr *Tracker) { tr.StartLoading("x"); tr.UpdateProgress(30, "") },
		"error":   func(tr *Tracker) { tr.StartLoading("x"); tr.SetError("bad") },
		"success": func(tr *Tracker) { tr.StartLoading("x"); tr.SetSuccess() },
		"retried": func(tr *Tracker) { tr.StartLoading("x"); tr.Retry() },
	}

	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			tracker, _ := newManualTracker()
			setup(tracker)
			tracker.Reset()

			state := tracker.Snapshot()
			require.Equal(t, StatusIdle, state.Status)
			require.False(t, state.IsLoading)
			require.Zero(t, state.Progress)
			require.Nil(t, state.Error)
			require.Zero(t, state.RetryCount)
		})
	}
}

func TestWatchdogForcesTimeout(t *testing.T) {
	var errs []string
	tracker, timers := newManualTracker(WithTimeout(10*time.Second), WithOnError(func(msg string) { errs = append(errs, msg) }))

	tracker.StartLoading("X")
	tracker.UpdateProgress(40, "")
	timer := timers.Last()
	require.Equal(t, 10*time.Second, timer.d)

	timer.Fire()

	state := tracker.Snapshot()
	require.Equal(t, StatusError, state.Status)
	require.False(t, state.IsLoading)
	require.Equal(t, TimeoutMessage, state.ErrorMessage())
	require.Equal(t, []string{TimeoutMessage}, errs)
}

func TestWatchdogSparesCompletedProgress(t *testing.T) {
	tracker, timers := newManualTracker()
	tracker.StartLoading("X")
	tracker.UpdateProgress(100, "")

	timers.Last().Fire()
	require.Equal(t, StatusLoading, tracker.Snapshot().Status)
}

func TestWatchdogIgnoredAfterResetOrClose(t *testing.T) {
	tracker, timers := newManualTracker()
	tracker.StartLoading("X")
	timer := timers.Last()
	tracker.Reset()
	timer.Fire()
	require.Equal(t, StatusIdle, tracker.Snapshot().Status)

	tracker.StartLoading("Y")
	timer = timers.Last()
	tracker.Close()
	require.True(t, timer.stopped)
	timer.Fire()
	require.Equal(t, StatusLoading, tracker.Snapshot().Status)
}

func TestWatchdogWithRealTimer(t *testing.T) {
	tracker := NewTracker(WithTimeout(20 * time.Millisecond))
	tracker.StartLoading("slow")

	require.Eventually(t, func() bool {
		return tracker.Snapshot().ErrorMessage() == TimeoutMessage
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	tracker, _ := newManualTracker()

	var mu sync.Mutex
	var seen []Status
	unsubscribe := tracker.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s.Status)
		mu.Unlock()
	})

	tracker.StartLoading("X")
	tracker.SetSuccess()
	unsubscribe()
	tracker.Reset()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Status{StatusLoading, StatusSuccess}, seen)
}

func TestSnapshotIsolatesErrorPointer(t *testing.T) {
	tracker, _ := newManualTracker()
	tracker.StartLoading("X")
	tracker.SetError("original")

	snap := tracker.Snapshot()
	*snap.Error = "mutated"
	require.Equal(t, "original", tracker.Snapshot().ErrorMessage())
}

func TestSeqGrowsWithEveryChange(t *testing.T) {
	tracker, _ := newManualTracker()
	require.Zero(t, tracker.Snapshot().Seq)

	tracker.StartLoading("X")
	require.EqualValues(t, 1, tracker.Snapshot().Seq)
	tracker.UpdateProgress(40, "")
	tracker.SetError("boom")
	tracker.Retry()
	tracker.Reset()
	require.EqualValues(t, 5, tracker.Snapshot().Seq)

	tracker.UpdateProgress(10, "ignored while idle")
	require.EqualValues(t, 5, tracker.Snapshot().Seq)
}

func TestConcurrentCommitsCarryDistinctSeq(t *testing.T) {
	tracker, _ := newManualTracker()

	var mu sync.Mutex
	seen := make(map[uint64]Status)
	tracker.Subscribe(func(s State) {
		mu.Lock()
		seen[s.Seq] = s.Status
		mu.Unlock()
	})

	tracker.StartLoading("X")
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			tracker.UpdateProgress(v, "")
		}(i)
	}
	wg.Wait()
	tracker.SetSuccess()

	final := tracker.Snapshot()
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, int(final.Seq))
	var newest uint64
	for seq := range seen {
		newest = max(newest, seq)
	}
	require.Equal(t, final.Seq, newest)
	require.Equal(t, StatusSuccess, seen[newest])
}
