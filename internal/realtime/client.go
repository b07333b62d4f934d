package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
	sendQueueSize  = 64
)

// Client is one websocket connection. userID is empty for anonymous
// connections, which still receive presence broadcasts but are never a
// relay target.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger zerolog.Logger

	userID string
	connID string

	// send is never closed; writers drop instead of blocking when it is
	// full, and writePump exits via done.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID, connID string, logger zerolog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		logger: logger,
		userID: userID,
		connID: connID,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Close signals both pumps to stop. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue queues a message for delivery, dropping it if the client's queue
// is full. A slow consumer must not stall the hub.
func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn().Str("conn", c.connID).Msg("send queue full, dropping message")
	}
}

// readPump reads inbound frames and dispatches them to the hub. It owns
// the connection's read side and triggers unregistration on exit.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Str("conn", c.connID).Msg("websocket read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Debug().Err(err).Str("conn", c.connID).Msg("malformed frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env Envelope) {
	switch env.Event {
	case EventJoinRooms:
		var roomIDs []string
		if err := json.Unmarshal(env.Data, &roomIDs); err != nil {
			return
		}
		c.hub.JoinRooms(c, roomIDs)

	case EventSendMessage:
		var roomID string
		if err := json.Unmarshal(env.Data, &roomID); err != nil {
			return
		}
		c.hub.CastRoom(c, roomID)

	case EventOutgoingCall, EventAcceptCall, EventRejectCall,
		EventUserBusy, EventLeaveCall, EventICECandidate:
		var payload callPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.To == "" {
			return
		}
		c.hub.Relay(env.Event, payload.To, relayPayload{
			From:        c.userID,
			FromName:    payload.FromName,
			RemoteOffer: payload.Offer,
			Candidate:   payload.Candidate,
		})

	default:
		c.logger.Debug().Str("event", env.Event).Str("conn", c.connID).Msg("unknown event")
	}
}

// writePump writes queued messages and keepalive pings until the client is
// closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
