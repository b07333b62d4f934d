package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	hub := NewHub(zerolog.Nop())
	go hub.Run()
	return hub
}

func newTestClient(hub *Hub, userID, connID string) *Client {
	return newClient(hub, nil, userID, connID, zerolog.Nop())
}

// recvEvent pops the next queued frame for a client.
func recvEvent(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("malformed frame: %v", err)
		}
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Envelope{}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPresenceSnapshotOnConnect(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	hub.Register(alice)

	env := recvEvent(t, alice)
	if env.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", env.Event, EventOnlineUsers)
	}
	var snapshot map[string]string
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snapshot["alice"] != "conn-1" {
		t.Fatalf("snapshot = %v, want alice -> conn-1", snapshot)
	}

	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(bob)

	// Both connections get the updated snapshot.
	for _, c := range []*Client{alice, bob} {
		env := recvEvent(t, c)
		var snapshot map[string]string
		if err := json.Unmarshal(env.Data, &snapshot); err != nil {
			t.Fatalf("unmarshal snapshot: %v", err)
		}
		if len(snapshot) != 2 || snapshot["alice"] != "conn-1" || snapshot["bob"] != "conn-2" {
			t.Fatalf("snapshot = %v, want both users", snapshot)
		}
	}
}

func TestPresenceSnapshotOnDisconnect(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(alice)
	hub.Register(bob)
	hub.Snapshot()
	drain(alice)
	drain(bob)

	hub.Unregister(alice)

	env := recvEvent(t, bob)
	if env.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", env.Event, EventOnlineUsers)
	}
	var snapshot map[string]string
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if _, ok := snapshot["alice"]; ok {
		t.Fatalf("snapshot = %v, alice should be gone", snapshot)
	}
	if snapshot["bob"] != "conn-2" {
		t.Fatalf("snapshot = %v, want bob -> conn-2", snapshot)
	}
}

func TestAnonymousConnectionSkipsPresence(t *testing.T) {
	hub := newTestHub()

	anon := newTestClient(hub, "", "conn-1")
	hub.Register(anon)

	snapshot := hub.Snapshot()
	if len(snapshot) != 0 {
		t.Fatalf("snapshot = %v, want empty", snapshot)
	}

	// Anonymous connections still receive the broadcast.
	env := recvEvent(t, anon)
	if env.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", env.Event, EventOnlineUsers)
	}
}

func TestLastLoginWins(t *testing.T) {
	hub := newTestHub()

	first := newTestClient(hub, "alice", "conn-1")
	second := newTestClient(hub, "alice", "conn-2")
	hub.Register(first)
	hub.Register(second)

	snapshot := hub.Snapshot()
	if snapshot["alice"] != "conn-2" {
		t.Fatalf("snapshot = %v, want alice -> conn-2", snapshot)
	}

	// Tearing down the stale connection must not evict the newer one.
	hub.Unregister(first)

	snapshot = hub.Snapshot()
	if snapshot["alice"] != "conn-2" {
		t.Fatalf("snapshot = %v after stale teardown, want alice -> conn-2", snapshot)
	}
}

func TestRelayDeliversToTargetOnly(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	carol := newTestClient(hub, "carol", "conn-3")
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)
	hub.Snapshot()
	drain(alice)
	drain(bob)
	drain(carol)

	offer := json.RawMessage(`{"sdp":"v=0"}`)
	delivered := hub.Relay(EventOutgoingCall, "bob", relayPayload{
		From:        "alice",
		FromName:    "Alice",
		RemoteOffer: offer,
	})
	if !delivered {
		t.Fatal("Relay() = false, want delivery to a live target")
	}

	env := recvEvent(t, bob)
	if env.Event != EventIncomingCall {
		t.Fatalf("event = %q, want %q", env.Event, EventIncomingCall)
	}
	var payload relayPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.From != "alice" {
		t.Fatalf("from = %q, want the true sender %q", payload.From, "alice")
	}
	if payload.FromName != "Alice" {
		t.Fatalf("fromName = %q, want %q", payload.FromName, "Alice")
	}
	if string(payload.RemoteOffer) != string(offer) {
		t.Fatalf("remoteOffer = %s, want %s", payload.RemoteOffer, offer)
	}

	assertNoFrame(t, alice)
	assertNoFrame(t, carol)
}

func TestRelayToOfflineTargetIsDropped(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	hub.Register(alice)
	drain(alice)

	delivered := hub.Relay(EventOutgoingCall, "nobody", relayPayload{From: "alice"})
	if delivered {
		t.Fatal("Relay() = true, want silent drop for an offline target")
	}
	assertNoFrame(t, alice)
}

func TestRelayDroppedWhenSendQueueFull(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(alice)
	hub.Register(bob)
	hub.Snapshot()
	drain(bob)

	// Saturate the target's queue; nothing is reading it.
	filler := []byte(`{"event":"noise"}`)
	for i := 0; i < sendQueueSize; i++ {
		bob.send <- filler
	}

	// The hub must neither block nor error; the frame is silently dropped.
	done := make(chan bool, 1)
	go func() {
		done <- hub.Relay(EventOutgoingCall, "bob", relayPayload{From: "alice"})
	}()
	select {
	case delivered := <-done:
		if !delivered {
			t.Fatal("Relay() = false, want true for a live target")
		}
	case <-time.After(time.Second):
		t.Fatal("Relay blocked on a saturated send queue")
	}

	for i := 0; i < sendQueueSize; i++ {
		if string(<-bob.send) != string(filler) {
			t.Fatalf("frame %d is not the filler, relay frame was enqueued", i)
		}
	}
	assertNoFrame(t, bob)
}

func TestRelayEventMapping(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(alice)
	hub.Register(bob)
	hub.Snapshot()
	drain(bob)

	cases := []struct {
		inbound  string
		outbound string
	}{
		{EventAcceptCall, EventCallAccepted},
		{EventRejectCall, EventCallRejected},
		{EventUserBusy, EventUserBusy},
		{EventLeaveCall, EventLeaveCall},
		{EventICECandidate, EventICECandidateReceive},
	}
	for _, tc := range cases {
		if !hub.Relay(tc.inbound, "bob", relayPayload{From: "alice"}) {
			t.Fatalf("Relay(%q) = false", tc.inbound)
		}
		env := recvEvent(t, bob)
		if env.Event != tc.outbound {
			t.Fatalf("Relay(%q) delivered %q, want %q", tc.inbound, env.Event, tc.outbound)
		}
	}
}

func TestRoomBroadcastExcludesSender(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	carol := newTestClient(hub, "carol", "conn-3")
	hub.Register(alice)
	hub.Register(bob)
	hub.Register(carol)

	hub.JoinRooms(alice, []string{"room-1"})
	hub.JoinRooms(bob, []string{"room-1"})
	hub.Snapshot()
	drain(alice)
	drain(bob)
	drain(carol)

	hub.CastRoom(alice, "room-1")

	env := recvEvent(t, bob)
	if env.Event != EventReceiveMessage {
		t.Fatalf("event = %q, want %q", env.Event, EventReceiveMessage)
	}
	var roomID string
	if err := json.Unmarshal(env.Data, &roomID); err != nil {
		t.Fatalf("unmarshal room id: %v", err)
	}
	if roomID != "room-1" {
		t.Fatalf("roomID = %q, want %q", roomID, "room-1")
	}

	assertNoFrame(t, alice)
	assertNoFrame(t, carol)
}

func TestRoomJoinIsIdempotent(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(alice)
	hub.Register(bob)

	hub.JoinRooms(bob, []string{"room-1", "room-1"})
	hub.JoinRooms(bob, []string{"room-1"})
	hub.JoinRooms(alice, []string{"room-1"})
	hub.Snapshot()
	drain(alice)
	drain(bob)

	hub.CastRoom(alice, "room-1")
	hub.Snapshot()

	env := recvEvent(t, bob)
	if env.Event != EventReceiveMessage {
		t.Fatalf("event = %q, want %q", env.Event, EventReceiveMessage)
	}
	assertNoFrame(t, bob)
}

func TestDisconnectLeavesRooms(t *testing.T) {
	hub := newTestHub()

	alice := newTestClient(hub, "alice", "conn-1")
	bob := newTestClient(hub, "bob", "conn-2")
	hub.Register(alice)
	hub.Register(bob)
	hub.JoinRooms(alice, []string{"room-1"})
	hub.JoinRooms(bob, []string{"room-1"})

	hub.Unregister(bob)
	hub.Snapshot()
	drain(bob)

	hub.CastRoom(alice, "room-1")
	hub.Snapshot()
	assertNoFrame(t, bob)
}
