package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testRelay(t *testing.T, d *fakeDialer, cmdSize int) (*Relay, chan poolEvent) {
	t.Helper()
	events := make(chan poolEvent, 16)
	var wg sync.WaitGroup
	r := newRelay("wss://relay.one", d, events, &wg, time.Minute, cmdSize)
	t.Cleanup(func() {
		r.Disconnect()
		wg.Wait()
	})
	return r, events
}

func TestRelaySendWhenDisconnected(t *testing.T) {
	r, _ := testRelay(t, newFakeDialer(), 4)

	if err := r.Send("EVENT", []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send = %v, want ErrNotConnected", err)
	}
}

func TestRelaySendQueueFull(t *testing.T) {
	d := newFakeDialer()
	r, _ := testRelay(t, d, 1)

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Stall the writer inside a send so the queue backs up
	conn := d.conn("wss://relay.one")
	gate := make(chan struct{})
	conn.mu.Lock()
	conn.sendGate = gate
	conn.mu.Unlock()

	// First command is picked up by the writer and blocks in Send
	if err := r.Send("EVENT", []byte("one")); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	// Let the writer take it off the queue
	eventually(t, func() bool {
		r.mu.RLock()
		sess := r.session
		r.mu.RUnlock()
		return sess != nil && len(sess.cmd) == 0
	}, "writer never picked up the first command")

	// Second fills the single-slot queue
	if err := r.Send("EVENT", []byte("two")); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	// Third has nowhere to go
	if err := r.Send("EVENT", []byte("three")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("third Send = %v, want ErrQueueFull", err)
	}

	close(gate)
	eventually(t, func() bool { return len(conn.sentMessages()) == 2 }, "queued commands never drained")
}

func TestRelayDisconnectIdempotent(t *testing.T) {
	d := newFakeDialer()
	r, _ := testRelay(t, d, 4)

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	r.Disconnect()
	r.Disconnect()

	eventually(t, func() bool { return r.Status() == StatusDisconnected }, "relay never disconnected")
}

func TestRelayStreamEndEmitsPeerDisconnected(t *testing.T) {
	d := newFakeDialer()
	r, events := testRelay(t, d, 4)

	if err := r.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	d.conn("wss://relay.one").Close()

	select {
	case ev := <-events:
		pd, ok := ev.(peerDisconnected)
		if !ok {
			t.Fatalf("event = %#v, want peerDisconnected", ev)
		}
		if pd.RelayURL != "wss://relay.one" {
			t.Fatalf("disconnect from %s", pd.RelayURL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no peerDisconnected event")
	}

	eventually(t, func() bool { return r.Status() == StatusDisconnected }, "relay never disconnected after stream end")
}

func TestRelayStaleReaderLeavesNewSessionAlone(t *testing.T) {
	d := newFakeDialer()
	events := make(chan poolEvent)
	var wg sync.WaitGroup
	r := newRelay("wss://relay.one", d, events, &wg, 20*time.Millisecond, 4)

	ctx := context.Background()
	if err := r.Connect(ctx); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	first := d.conn("wss://relay.one")

	// Failing pings kill the writer; with nothing draining events, the
	// old reader parks on its stream-end report.
	first.mu.Lock()
	first.pingErr = errors.New("broken pipe")
	first.mu.Unlock()
	eventually(t, func() bool { return r.Status() == StatusDisconnected }, "ping failure never disconnected the relay")

	if err := r.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if d.dialCount("wss://relay.one") != 2 {
		t.Fatalf("dial count = %d, want 2", d.dialCount("wss://relay.one"))
	}

	// Unpark the old reader; its close signal must land on the dead
	// session, not the live one
	ev := <-events
	if _, ok := ev.(peerDisconnected); !ok {
		t.Fatalf("event = %#v, want peerDisconnected", ev)
	}
	time.Sleep(100 * time.Millisecond)
	if r.Status() != StatusConnected {
		t.Fatal("old reader tore down the reconnected session")
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for range events {
		}
	}()
	r.Disconnect()
	wg.Wait()
	close(events)
	<-drained
}

func TestRelayReconnectAfterDisconnect(t *testing.T) {
	d := newFakeDialer()
	r, _ := testRelay(t, d, 4)

	ctx := context.Background()
	if err := r.Connect(ctx); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	r.Disconnect()
	eventually(t, func() bool { return r.Status() == StatusDisconnected }, "relay never disconnected")

	if err := r.Connect(ctx); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if r.Status() != StatusConnected {
		t.Fatalf("status = %v, want connected", r.Status())
	}
	if d.dialCount("wss://relay.one") != 2 {
		t.Fatalf("dial count = %d, want 2", d.dialCount("wss://relay.one"))
	}
}
