package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/Aditya1056/interact-backend/internal/metrics"
)

type joinRequest struct {
	client  *Client
	roomIDs []string
}

type roomCast struct {
	sender *Client
	roomID string
}

type relayRequest struct {
	event   string
	to      string
	payload []byte
	ok      chan bool
}

type snapshotRequest struct {
	reply chan map[string]string
}

// Hub owns all live-connection state: the set of open connections, the
// user-to-connection presence registry, and room memberships. All state is
// confined to the run loop; the exported methods communicate with it over
// channels, so no locks are needed.
type Hub struct {
	logger zerolog.Logger

	register   chan *Client
	unregister chan *Client
	join       chan joinRequest
	casts      chan roomCast
	relays     chan relayRequest
	snapshots  chan snapshotRequest

	// Owned by run; never touched elsewhere.
	clients  map[*Client]bool
	presence map[string]*Client
	rooms    map[string]map[*Client]bool
}

// NewHub creates a Hub. Call Run in its own goroutine before registering
// connections.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan joinRequest),
		casts:      make(chan roomCast),
		relays:     make(chan relayRequest),
		snapshots:  make(chan snapshotRequest),
		clients:    make(map[*Client]bool),
		presence:   make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run processes hub commands until the process exits. It is the only
// goroutine that reads or writes hub state.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case req := <-h.join:
			h.handleJoin(req)
		case cast := <-h.casts:
			h.handleRoomCast(cast)
		case req := <-h.relays:
			req.ok <- h.handleRelay(req)
		case req := <-h.snapshots:
			req.reply <- h.presenceSnapshot()
		}
	}
}

// Register adds a connection to the hub. A connection with a user ID is
// entered into the presence registry (overwriting any previous connection
// for that user); an anonymous connection only joins the broadcast set.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes a connection, dropping its presence entry only if the
// registry still points at it. A stale connection torn down after the same
// user reconnected must not evict the newer connection.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// JoinRooms subscribes a connection to the given rooms. Joining a room
// twice is a no-op.
func (h *Hub) JoinRooms(c *Client, roomIDs []string) {
	h.join <- joinRequest{client: c, roomIDs: roomIDs}
}

// CastRoom notifies every member of a room except the sender that the room
// has new activity.
func (h *Hub) CastRoom(sender *Client, roomID string) {
	h.casts <- roomCast{sender: sender, roomID: roomID}
}

// Relay forwards a call-signaling event to the connection registered for
// the target user. It reports whether a connection was found; the payload
// is enqueued without waiting for delivery.
func (h *Hub) Relay(event, to string, payload relayPayload) bool {
	outEvent := relayEventFor(event)
	if outEvent == "" {
		return false
	}

	msg, err := marshalEnvelope(outEvent, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshal relay payload")
		return false
	}

	metrics.RelayEvents.WithLabelValues(event).Inc()

	req := relayRequest{event: outEvent, to: to, payload: msg, ok: make(chan bool, 1)}
	h.relays <- req
	delivered := <-req.ok
	if !delivered {
		metrics.RelayDropped.WithLabelValues(event).Inc()
	}
	return delivered
}

// Snapshot returns a copy of the presence registry (user ID to connection
// ID).
func (h *Hub) Snapshot() map[string]string {
	req := snapshotRequest{reply: make(chan map[string]string, 1)}
	h.snapshots <- req
	return <-req.reply
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = true
	metrics.ConnectionsOpen.Inc()

	if c.userID != "" {
		h.presence[c.userID] = c
		metrics.UsersOnline.Set(float64(len(h.presence)))
	}

	h.logger.Debug().Str("conn", c.connID).Str("user", c.userID).Msg("connection registered")
	h.broadcastPresence()
}

func (h *Hub) handleUnregister(c *Client) {
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	metrics.ConnectionsOpen.Dec()

	for roomID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}

	if c.userID != "" && h.presence[c.userID] == c {
		delete(h.presence, c.userID)
		metrics.UsersOnline.Set(float64(len(h.presence)))
	}

	c.Close()

	h.logger.Debug().Str("conn", c.connID).Str("user", c.userID).Msg("connection unregistered")
	h.broadcastPresence()
}

func (h *Hub) handleJoin(req joinRequest) {
	if !h.clients[req.client] {
		return
	}
	for _, roomID := range req.roomIDs {
		members := h.rooms[roomID]
		if members == nil {
			members = make(map[*Client]bool)
			h.rooms[roomID] = members
		}
		members[req.client] = true
	}
}

func (h *Hub) handleRoomCast(cast roomCast) {
	roomID, err := json.Marshal(cast.roomID)
	if err != nil {
		return
	}
	msg, err := json.Marshal(Envelope{Event: EventReceiveMessage, Data: roomID})
	if err != nil {
		return
	}
	for member := range h.rooms[cast.roomID] {
		if member == cast.sender {
			continue
		}
		member.enqueue(msg)
	}
}

func (h *Hub) handleRelay(req relayRequest) bool {
	target, ok := h.presence[req.to]
	if !ok {
		return false
	}
	target.enqueue(req.payload)
	return true
}

func (h *Hub) presenceSnapshot() map[string]string {
	snapshot := make(map[string]string, len(h.presence))
	for userID, c := range h.presence {
		snapshot[userID] = c.connID
	}
	return snapshot
}

// broadcastPresence pushes the full presence registry to every open
// connection, anonymous ones included.
func (h *Hub) broadcastPresence() {
	msg, err := marshalEnvelope(EventOnlineUsers, h.presenceSnapshot())
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal presence snapshot")
		return
	}
	for c := range h.clients {
		c.enqueue(msg)
	}
}
