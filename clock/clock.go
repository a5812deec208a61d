package clock

import (
	"sync"
	"time"

	"go.uber.org/fx"
)

// Clock reports the current time. Implementations must return UTC.
type Clock interface {
	Now() time.Time
}

var Module = fx.Provide(func() Clock { return System{} })

type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
