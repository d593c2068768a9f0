package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRecordsFirstErrorAndCancels(t *testing.T) {
	t.Parallel()
	sup := New(context.Background(), WithCancelOnError(true))

	boom := errors.New("boom")
	sup.Go("failing", func(ctx context.Context) error { return boom })
	sup.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait error = %v, want wrapped boom", err)
	}
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	sup := New(context.Background())
	sup.Go("panicky", func(ctx context.Context) error { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err == nil {
		t.Fatal("expected panic to surface as error")
	}
	snap := sup.Snapshot()
	if len(snap.Routines) != 1 || snap.Routines[0].Panics != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestGoRestartRestartsUntilClean(t *testing.T) {
	t.Parallel()
	sup := New(context.Background())

	var runs atomic.Int32
	sup.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond), WithPublishFirstError(true))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
	if err == nil {
		t.Fatal("expected first error to be published")
	}
}

func TestStopCancelsContext(t *testing.T) {
	t.Parallel()
	sup := New(context.Background())
	sup.Go0("loop", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	a := New(context.Background())
	defer a.Cancel()
	reg.Set("b", New(context.Background()))
	reg.Set("a", a)
	if got := reg.Names(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("Names = %v", got)
	}
	reg.Delete("b")
	if snaps := reg.Snapshots(); len(snaps) != 1 {
		t.Fatalf("Snapshots = %v", snaps)
	}

	var nilReg *Registry
	nilReg.Set("x", a)
	if nilReg.Names() != nil {
		t.Fatal("nil registry should be empty")
	}
}
