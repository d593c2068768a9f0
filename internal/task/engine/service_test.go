package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

func startEngine(t *testing.T, cfg Config) *Service {
	t.Helper()
	cfg.Enabled = true
	s := New(cfg, logx.Nop(), eventbus.New())
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEnqueueDisabled(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	err := s.Enqueue(Task{Name: "x", Run: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestEnqueueValidates(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})
	if err := s.Enqueue(Task{Name: "x"}); err == nil {
		t.Fatal("expected error for nil Run")
	}
	if err := s.Enqueue(Task{Name: "  ", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, RetryMax: 3})

	var calls atomic.Int32
	err := s.Enqueue(Task{
		Name: "flaky",
		Opt:  TaskOptions{RetryBase: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond},
		Run: func(context.Context) error {
			if calls.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })

	h := s.Snapshot().History[0]
	if h.Error != "" || h.Attempts != 3 {
		t.Fatalf("history = %+v, want success after 3 attempts", h)
	}
}

func TestNoRetryStopsImmediately(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, RetryMax: 5})

	var calls atomic.Int32
	_ = s.Enqueue(Task{
		Name: "permanent",
		Run: func(context.Context) error {
			calls.Add(1)
			return NoRetry(errors.New("bad input"))
		},
	})
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if h := s.Snapshot().History[0]; h.Error != "bad input" {
		t.Fatalf("error = %q", h.Error)
	}
}

func TestNegativeRetryMaxDisablesRetries(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, RetryMax: 5})

	var calls atomic.Int32
	_ = s.Enqueue(Task{
		Name: "once",
		Opt:  TaskOptions{RetryMax: -1},
		Run: func(context.Context) error {
			calls.Add(1)
			return errors.New("fail")
		},
	})
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestPanicBecomesError(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})
	_ = s.Enqueue(Task{Name: "boom", Opt: TaskOptions{RetryMax: -1}, Run: func(context.Context) error { panic("boom") }})
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })
	if h := s.Snapshot().History[0]; h.Error == "" {
		t.Fatal("expected panic to be recorded as error")
	}
}

func TestOverlapSkip(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 2})

	release := make(chan struct{})
	started := make(chan struct{})
	task := Task{
		Name: "sweep",
		Opt:  TaskOptions{Overlap: OverlapSkipIfRunning},
		Run: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}
	if err := s.Enqueue(task); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	<-started
	if err := s.Enqueue(task); !errors.Is(err, ErrOverlapSkip) {
		t.Fatalf("second enqueue err = %v, want ErrOverlapSkip", err)
	}
	close(release)
}

func TestBackoffDelayBounded(t *testing.T) {
	t.Parallel()
	opt := (TaskOptions{RetryBase: time.Second, RetryMaxDelay: 4 * time.Second}).withDefaults(Config{})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := backoffDelay(opt, i+1, nil); got != w {
			t.Fatalf("retry %d: delay = %s, want %s", i+1, got, w)
		}
	}
	hinted := backoffDelayWithHint(opt, 1, RetryAfter(errors.New("429"), time.Minute), nil)
	if hinted != 4*time.Second {
		t.Fatalf("hinted delay = %s, want cap", hinted)
	}
}

func TestSubmitWaitsForSpace(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1, QueueSize: 1})

	release := make(chan struct{})
	started := make(chan struct{})
	if err := s.Enqueue(Task{Name: "hold", Run: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-started
	if err := s.Enqueue(Task{Name: "fill", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Enqueue fill: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Submit(ctx, Task{Name: "late", Run: func(context.Context) error { return nil }}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Submit on full queue = %v, want deadline exceeded", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), Task{Name: "waits", Run: func(context.Context) error { return nil }})
	}()
	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Submit did not return after queue drained")
	}
	waitFor(t, func() bool { return len(s.Snapshot().History) == 3 })
}

func TestApplyResizesAndDisables(t *testing.T) {
	t.Parallel()
	s := startEngine(t, Config{Workers: 1})

	s.Apply(context.Background(), Config{Enabled: true, Workers: 3})
	snap := s.Snapshot()
	if snap.Workers != 3 || snap.QueueCap == 0 {
		t.Fatalf("snapshot after resize = %+v", snap)
	}
	if err := s.Enqueue(Task{Name: "after-resize", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Enqueue after resize: %v", err)
	}
	waitFor(t, func() bool { return len(s.Snapshot().History) == 1 })

	s.Apply(context.Background(), Config{Enabled: false})
	if err := s.Enqueue(Task{Name: "off", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Enqueue after disable = %v, want ErrDisabled", err)
	}
	if s.Supervisor() != nil {
		t.Fatal("workers still running after disable")
	}
}
