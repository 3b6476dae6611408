package mailbox

import (
	"context"
	"testing"
	"time"
)

func TestCloseReleasesWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &Client{done: make(chan struct{})}

	exited := make(chan struct{})
	go func() {
		m.watch(ctx)
		close(exited)
	}()

	// the watcher must not outlive the connection even though the
	// context is still alive (scans run under the daemon context)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher still running after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := &Client{done: make(chan struct{})}
	if err := m.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestWatchClosesOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Client{done: make(chan struct{})}

	exited := make(chan struct{})
	go func() {
		m.watch(ctx)
		close(exited)
	}()

	cancel()
	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not react to context cancel")
	}

	// Close after a cancel-triggered close must still be safe
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
