package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 8192                // Maximum message size allowed from peer.

	sendTimeout = 10 * time.Second // budget for persisting an inbound chat message
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// Identity from the authenticated upgrade request. The announce frame
	// activates it; the payload's claimed identity is ignored since the
	// token already proved who the peer is.
	userID uuid.UUID
	role   string
	name   string

	// Buffered channel of outbound frames.
	send chan []byte

	// Rooms this connection currently holds; hub-owned, guarded by hub.mu.
	rooms map[string]struct{}
}

// NewClient wraps an upgraded connection. The caller starts the pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role, name string) *Client {
	c := &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		userID: userID,
		role:   role,
		name:   name,
		send:   make(chan []byte, 256),
		rooms:  make(map[string]struct{}),
	}
	hub.register(c)
	return c
}

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

type announcePayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type roomPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
}

// readPump pumps frames from the websocket connection into the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("conn", c.id).Msg("read error")
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.hub.log.Warn().Str("conn", c.id).Msg("malformed frame, ignoring")
			continue
		}
		c.dispatch(env)
	}
}

// dispatch handles one inbound frame. Handler errors never tear down the
// connection; live input is best-effort like live output.
func (c *Client) dispatch(env Envelope) {
	switch env.Event {
	case eventAnnounce:
		// Payload kept for wire compatibility; identity comes from the token.
		var p announcePayload
		_ = json.Unmarshal(env.Data, &p)
		c.hub.announce(c, c.userID, c.role)

	case eventJoinChat:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			return
		}
		c.hub.joinRoom(c, ConversationRoom(p.ConversationID))

	case eventLeaveChat:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			return
		}
		c.hub.leaveRoom(c, ConversationRoom(p.ConversationID))

	case eventSendMessage:
		var p sendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == uuid.Nil {
			return
		}
		if c.hub.sender == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if _, err := c.hub.sender.Send(ctx, p.ConversationID, c.userID, p.Content, p.Type); err != nil {
			c.hub.log.Warn().Err(err).Str("conn", c.id).Msg("inbound message rejected")
		}

	default:
		c.hub.log.Debug().Str("conn", c.id).Str("event", env.Event).Msg("unknown event")
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(frame)

			// Flush any queued frames in the same write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
