package clock

import (
	"sync"
	"time"
)

// Fake is a manually driven Clock. Callbacks run synchronously inside
// Advance/Set, on the caller's goroutine, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*fakeTimer
}

type fakeTimer struct {
	f  *Fake
	id uint64
	at time.Time
	fn func()
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now, timers: map[uint64]*fakeTimer{}}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{f: f, id: f.seq, at: f.now.Add(d), fn: fn}
	f.timers[t.id] = t
	return t
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if _, ok := t.f.timers[t.id]; !ok {
		return false
	}
	delete(t.f.timers, t.id)
	return true
}

// Advance moves time forward by d and fires every timer that came due.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// Set moves time to target (never backwards), firing due timers one by one.
// While a callback runs, Now reports that timer's deadline.
func (f *Fake) Set(target time.Time) {
	for {
		f.mu.Lock()
		t := f.nextDueLocked(target)
		if t == nil {
			if target.After(f.now) {
				f.now = target
			}
			f.mu.Unlock()
			return
		}
		if t.at.After(f.now) {
			f.now = t.at
		}
		delete(f.timers, t.id)
		f.mu.Unlock()
		t.fn()
	}
}

// Pending returns the number of armed timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDueLocked(target time.Time) *fakeTimer {
	var next *fakeTimer
	for _, t := range f.timers {
		if t.at.After(target) {
			continue
		}
		if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.id < next.id) {
			next = t
		}
	}
	return next
}
