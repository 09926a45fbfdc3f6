package pool

import (
	"context"
	"testing"
	"time"
)

func TestReconnectorRedialsDisconnectedRelay(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}
	p.ConnectAll(context.Background())

	rc := NewReconnector(p, ReconnectOptions{
		ScanInterval:      20 * time.Millisecond,
		AttemptsPerMinute: 600,
		Burst:             10,
		Workers:           2,
	})
	rc.Start(context.Background())
	t.Cleanup(rc.Stop)

	// Peer drops the connection
	d.conn(url).Close()
	eventually(t, func() bool {
		s, _ := p.Status(url)
		return s == StatusDisconnected
	}, "relay never disconnected")

	eventually(t, func() bool {
		s, _ := p.Status(url)
		return s == StatusConnected && d.dialCount(url) >= 2
	}, "supervisor never redialed the relay")

	// Drain the disconnect notification so Close is clean
	nextNotification(t, p.Notifications())
}

func TestReconnectorLeavesConnectedRelaysAlone(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}
	p.ConnectAll(context.Background())

	rc := NewReconnector(p, ReconnectOptions{
		ScanInterval:      10 * time.Millisecond,
		AttemptsPerMinute: 600,
		Burst:             10,
		Workers:           2,
	})
	rc.Start(context.Background())
	t.Cleanup(rc.Stop)

	time.Sleep(100 * time.Millisecond)
	if got := d.dialCount(url); got != 1 {
		t.Fatalf("dial count = %d, want 1", got)
	}
}
