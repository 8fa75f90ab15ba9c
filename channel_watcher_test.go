package beacon

import (
	"context"
	"testing"
	"time"
)

func TestChannelWatcher_ForwardsValues(t *testing.T) {
	source := make(chan []byte, 3)
	source <- []byte("1200")
	source <- []byte("1250")
	source <- []byte("1300")

	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	readings := []string{"1200", "1250", "1300"}
	for i, want := range readings {
		select {
		case v := <-out:
			if string(v) != want {
				t.Errorf("expected %s, got %s", want, string(v))
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for reading %d", i)
		}
	}
}

func TestChannelWatcher_ClosesOnSourceClose(t *testing.T) {
	source := make(chan []byte, 1)
	source <- []byte("1200")
	close(source)

	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Drain the value
	<-out

	// Channel should close
	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for channel close")
	}
}

func TestChannelWatcher_ClosesOnContextCancel(t *testing.T) {
	source := make(chan []byte) // unbuffered, will block

	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithCancel(context.Background())

	out, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Cancel context
	cancel()

	// Channel should close
	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected channel to be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for channel close")
	}
}

func TestChannelWatcher_RespectsContextDuringSend(t *testing.T) {
	source := make(chan []byte, 1)
	source <- []byte("1200")

	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithCancel(context.Background())

	out, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Don't read from out, causing backpressure
	// Cancel context while send is blocked
	cancel()

	// Goroutine should exit cleanly
	select {
	case <-out:
		// Value may or may not have been sent before cancel
	case <-time.After(100 * time.Millisecond):
		// This is also acceptable - send was blocked and canceled
	}
}

func TestChannelWatcher_CancelWhileBlockedOnSend(t *testing.T) {
	// Unbuffered source channel
	source := make(chan []byte)

	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithCancel(context.Background())

	watchOut, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	// Send a value that will be received by watcher goroutine
	go func() {
		source <- []byte("1200")
	}()

	// Wait for value to be received by watcher goroutine
	// It will now be blocked trying to send to watchOut (unbuffered)
	time.Sleep(20 * time.Millisecond)

	// Cancel context - this should unblock the send
	cancel()

	// watchOut should close cleanly
	select {
	case <-watchOut:
		// Channel closed as expected
	case <-time.After(100 * time.Millisecond):
		t.Error("channel did not close after context cancel")
	}
}

func TestChannelWatcher_CopiesValues(t *testing.T) {
	source := make(chan []byte)
	watcher := NewChannelWatcher(source)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	out, err := watcher.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	buf := []byte("1200")
	source <- buf

	select {
	case v := <-out:
		// the producer reuses its buffer for the next reading
		copy(buf, "9999")
		if string(v) != "1200" {
			t.Errorf("expected forwarded value to keep 1200, got %s", v)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for value")
	}
}
