package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap/zaptest"
)

func TestNewRequiresPaths(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error without paths")
	}
}

func TestWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nginx.conf")
	other := filepath.Join(dir, "other.conf")
	for _, p := range []string{target, other} {
		if err := os.WriteFile(p, []byte("user nginx;\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	w, err := New(Config{
		Paths:       []string{target},
		Debounce:    20 * time.Millisecond,
		MinInterval: 10 * time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	seen := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, path string) {
			calls.Add(1)
			seen <- path
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(other, []byte("user www;\n"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(target, []byte("user www;\n"), 0o644); err != nil {
			t.Fatalf("write target: %v", err)
		}
	}

	select {
	case path := <-seen:
		if filepath.Base(path) != "nginx.conf" {
			t.Fatalf("action called for %s", path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("action was not triggered")
	}

	// The burst of writes is debounced into one action.
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("action called %d times, want 1", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestLoopReturnsWhenChannelsClose(t *testing.T) {
	w, err := New(Config{Paths: []string{"nginx.conf"}}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	tests := []struct {
		name        string
		closeEvents bool
	}{
		{name: "events closed", closeEvents: true},
		{name: "errors closed", closeEvents: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make(chan fsnotify.Event)
			errs := make(chan error)
			if tt.closeEvents {
				close(events)
			} else {
				close(errs)
			}

			done := make(chan error, 1)
			go func() {
				done <- w.loop(context.Background(), events, errs, func(context.Context, string) {})
			}()

			select {
			case err := <-done:
				if err == nil {
					t.Fatal("expected error when a watcher channel closes")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("loop did not return after its channel closed")
			}
		})
	}
}
