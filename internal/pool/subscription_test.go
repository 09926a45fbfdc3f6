package pool

import (
	"context"
	"testing"

	nostr "github.com/nbd-wtf/go-nostr"
)

func parseSent(t *testing.T, payload []byte) nostr.Envelope {
	t.Helper()
	env := nostr.ParseMessage(string(payload))
	if env == nil {
		t.Fatalf("relay received unparseable payload: %s", payload)
	}
	return env
}

func TestStartSubscriptionSendsReq(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}
	p.ConnectAll(context.Background())

	filters := nostr.Filters{{Kinds: []int{1}}}
	p.StartSubscription(filters)

	conn := d.conn(url)
	eventually(t, func() bool { return len(conn.sentMessages()) == 1 }, "relay never received REQ")

	req, ok := parseSent(t, conn.sentMessages()[0]).(*nostr.ReqEnvelope)
	if !ok {
		t.Fatalf("relay received %T, want ReqEnvelope", parseSent(t, conn.sentMessages()[0]))
	}
	if req.SubscriptionID == "" {
		t.Fatal("REQ carries empty subscription ID")
	}
	if len(req.Filters) != 1 || len(req.Filters[0].Kinds) != 1 || req.Filters[0].Kinds[0] != 1 {
		t.Fatalf("REQ filters = %#v, want kind 1", req.Filters)
	}
}

func TestResubscribeReusesChannelWithoutClose(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}
	p.ConnectAll(context.Background())

	p.StartSubscription(nostr.Filters{{Kinds: []int{1}}})
	conn := d.conn(url)
	eventually(t, func() bool { return len(conn.sentMessages()) == 1 }, "first REQ never sent")
	first := parseSent(t, conn.sentMessages()[0]).(*nostr.ReqEnvelope)

	// Replacing the filter set re-issues REQ on the same channel
	p.StartSubscription(nostr.Filters{{Kinds: []int{0, 1}}})
	eventually(t, func() bool { return len(conn.sentMessages()) == 2 }, "second REQ never sent")

	for _, payload := range conn.sentMessages() {
		if _, isClose := parseSent(t, payload).(*nostr.CloseEnvelope); isClose {
			t.Fatal("filter replacement sent CLOSE")
		}
	}

	second := parseSent(t, conn.sentMessages()[1]).(*nostr.ReqEnvelope)
	if second.SubscriptionID != first.SubscriptionID {
		t.Fatalf("re-subscribe changed channel: %s -> %s", first.SubscriptionID, second.SubscriptionID)
	}
}

func TestStopSubscriptionSendsClose(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	urls := []string{"wss://relay.one", "wss://relay.two"}
	for _, u := range urls {
		if err := p.AddRelay(u); err != nil {
			t.Fatalf("AddRelay(%s): %v", u, err)
		}
	}
	p.ConnectAll(context.Background())
	p.StartSubscription(nostr.Filters{{Kinds: []int{1}}})

	for _, u := range urls {
		conn := d.conn(u)
		eventually(t, func() bool { return len(conn.sentMessages()) == 1 }, "REQ never sent: "+u)
	}

	p.StopSubscription()

	for _, u := range urls {
		conn := d.conn(u)
		eventually(t, func() bool { return len(conn.sentMessages()) == 2 }, "CLOSE never sent: "+u)

		req := parseSent(t, conn.sentMessages()[0]).(*nostr.ReqEnvelope)
		closeEnv, ok := parseSent(t, conn.sentMessages()[1]).(*nostr.CloseEnvelope)
		if !ok {
			t.Fatalf("relay %s second message is %T, want CloseEnvelope", u, parseSent(t, conn.sentMessages()[1]))
		}
		if string(*closeEnv) != req.SubscriptionID {
			t.Fatalf("CLOSE for channel %s, want %s", string(*closeEnv), req.SubscriptionID)
		}
	}
}

func TestConnectReissuesActiveSubscription(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}

	// Subscription set while the relay is down
	p.StartSubscription(nostr.Filters{{Kinds: []int{1}}})

	if err := p.ConnectRelay(context.Background(), url); err != nil {
		t.Fatalf("ConnectRelay: %v", err)
	}

	conn := d.conn(url)
	eventually(t, func() bool { return len(conn.sentMessages()) == 1 }, "connect never re-issued REQ")
	if _, ok := parseSent(t, conn.sentMessages()[0]).(*nostr.ReqEnvelope); !ok {
		t.Fatalf("relay received %T, want ReqEnvelope", parseSent(t, conn.sentMessages()[0]))
	}
}

func TestDisconnectDropsChannelWithoutClose(t *testing.T) {
	d := newFakeDialer()
	p := testPool(t, d)

	const url = "wss://relay.one"
	if err := p.AddRelay(url); err != nil {
		t.Fatalf("AddRelay: %v", err)
	}
	p.ConnectAll(context.Background())
	p.StartSubscription(nostr.Filters{{Kinds: []int{1}}})

	conn := d.conn(url)
	eventually(t, func() bool { return len(conn.sentMessages()) == 1 }, "REQ never sent")

	if err := p.DisconnectRelay(url); err != nil {
		t.Fatalf("DisconnectRelay: %v", err)
	}
	eventually(t, func() bool {
		s, _ := p.Status(url)
		return s == StatusDisconnected
	}, "relay never disconnected")

	for _, payload := range conn.sentMessages() {
		if _, isClose := parseSent(t, payload).(*nostr.CloseEnvelope); isClose {
			t.Fatal("disconnect sent CLOSE")
		}
	}

	if _, tracked := p.subs.Channel(url); tracked {
		t.Fatal("disconnect left the channel tracked")
	}
}

func TestTrackerChannelReuse(t *testing.T) {
	tr := newSubscriptionTracker()

	first := tr.ChannelFor("wss://relay.one")
	if first == "" {
		t.Fatal("empty channel ID")
	}
	if again := tr.ChannelFor("wss://relay.one"); again != first {
		t.Fatalf("channel changed on reuse: %s -> %s", first, again)
	}
	if other := tr.ChannelFor("wss://relay.two"); other == first {
		t.Fatal("two relays share a channel ID")
	}

	tr.RemoveChannel("wss://relay.one")
	if fresh := tr.ChannelFor("wss://relay.one"); fresh == first {
		t.Fatal("removed channel was reused")
	}
}
