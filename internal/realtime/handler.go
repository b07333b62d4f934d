package realtime

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced at the CORS layer for the API; the
	// websocket handshake accepts any origin, matching the HTTP routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket connection and hands it
// to the hub. The userId query parameter is optional; without it the
// connection is anonymous.
func ServeWS(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		userID := r.URL.Query().Get("userId")
		c := newClient(hub, conn, userID, uuid.NewString(), logger)

		hub.Register(c)

		go c.writePump()
		go c.readPump()
	}
}
