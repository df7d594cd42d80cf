package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Scenario: a pending watcher stays pending through a control-only transfer
// and resolves on the next real change, a card turning face up.
func TestWatchResolvesOnVisibleChangesOnly(t *testing.T) {
	b := mustBoard(t, demoBoard)
	ctx := testCtx(t)

	// Leave u at (0,0) and a at (0,2) face up and uncontrolled so a
	// control-only transfer is possible later.
	if err := b.FlipFirst(ctx, "alice", pos(0, 0)); err != nil {
		t.Fatalf("FlipFirst failed: %s", err)
	}
	if err := b.FlipSecond("alice", pos(0, 2)); err != nil {
		t.Fatalf("FlipSecond failed: %s", err)
	}

	snaps := make(chan string, 1)
	go func() {
		s, err := b.Watch(ctx, "bob")
		if err != nil {
			t.Errorf("Watch failed: %s", err)
		}
		snaps <- s
	}()
	waitForWatchers(t, b, 1)

	// Claiming the uncontrolled face-up card changes nothing visible.
	if err := b.TryFlipFirst("charlie", pos(0, 0)); err != nil {
		t.Fatalf("TryFlipFirst failed: %s", err)
	}
	select {
	case s := <-snaps:
		t.Fatalf("watch resolved on a control transfer:\n%s", s)
	case <-time.After(50 * time.Millisecond):
	}

	// Turning a card face up is a visible change.
	if err := b.TryFlipFirst("dave", pos(1, 0)); err != nil {
		t.Fatalf("TryFlipFirst failed: %s", err)
	}
	snap := <-snaps
	if got := spot(t, snap, b, pos(1, 0)); got != "up b" {
		t.Errorf("watch snapshot shows %q at (1,0), want %q", got, "up b")
	}
}

func TestWatchSnapshotIncludesTheChange(t *testing.T) {
	b := mustBoard(t, demoBoard)
	ctx := testCtx(t)

	snaps := make(chan string, 1)
	go func() {
		s, err := b.Watch(ctx, "bob")
		if err != nil {
			t.Errorf("Watch failed: %s", err)
		}
		snaps <- s
	}()
	waitForWatchers(t, b, 1)

	if err := b.FlipFirst(ctx, "alice", pos(0, 0)); err != nil {
		t.Fatalf("FlipFirst failed: %s", err)
	}
	if got := spot(t, <-snaps, b, pos(0, 0)); got != "up u" {
		t.Errorf("watch snapshot shows %q, want %q", got, "up u")
	}
}

// All watchers pending at a change resolve from that one change, each from
// its own perspective.
func TestBroadcastReachesEveryWatcher(t *testing.T) {
	b := mustBoard(t, demoBoard)
	ctx := testCtx(t)
	const n = 8

	var wg sync.WaitGroup
	snaps := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := b.Watch(ctx, fmt.Sprintf("watcher%d", i))
			if err != nil {
				t.Errorf("Watch failed: %s", err)
				return
			}
			snaps[i] = s
		}(i)
	}
	waitForWatchers(t, b, n)

	if err := b.FlipFirst(ctx, "alice", pos(0, 0)); err != nil {
		t.Fatalf("FlipFirst failed: %s", err)
	}
	wg.Wait()

	for i, s := range snaps {
		if got := spot(t, s, b, pos(0, 0)); got != "up u" {
			t.Errorf("watcher%d sees %q, want %q", i, got, "up u")
		}
	}

	// The set was drained: a new change needs a fresh watcher.
	b.mu.Lock()
	pending := len(b.watchers)
	b.mu.Unlock()
	if pending != 0 {
		t.Errorf("watcher set still has %d entries after broadcast", pending)
	}
}

func TestWatchErrorsDoNotNotify(t *testing.T) {
	b := mustBoard(t, demoBoard)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	snaps := make(chan string, 1)
	go func() {
		s, err := b.Watch(ctx, "bob")
		done <- err
		snaps <- s
	}()
	waitForWatchers(t, b, 1)

	if err := b.FlipFirst(ctx, "alice", pos(9, 9)); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("FlipFirst = %v, want ErrOutOfBounds", err)
	}
	if err := b.FlipSecond("alice", pos(0, 0)); !errors.Is(err, ErrNoFirst) {
		t.Fatalf("FlipSecond = %v, want ErrNoFirst", err)
	}
	select {
	case s := <-snaps:
		t.Fatalf("watch resolved on failed operations:\n%s", s)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch = %v, want context.Canceled", err)
	}
}

func TestWatchCancellation(t *testing.T) {
	b := mustBoard(t, demoBoard)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := b.Watch(ctx, "bob")
		done <- err
	}()
	waitForWatchers(t, b, 1)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Watch = %v, want context.Canceled", err)
	}
	b.mu.Lock()
	pending := len(b.watchers)
	b.mu.Unlock()
	if pending != 0 {
		t.Errorf("canceled watcher still registered (%d entries)", pending)
	}
}
