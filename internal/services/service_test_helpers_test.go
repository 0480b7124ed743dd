package services

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/veloigp/internal/realtime"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []realtime.Message
}

func (r *recordingBroadcaster) BroadcastStream(stream string, message realtime.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.Stream = stream
	r.messages = append(r.messages, message)
}

func (r *recordingBroadcaster) events(stream string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, msg := range r.messages {
		if msg.Stream == stream {
			out = append(out, msg.Event)
		}
	}
	return out
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
