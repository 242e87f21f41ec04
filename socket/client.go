package socket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pagesync/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CheckOrigin allows connections from the frontend dev server
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one participant connection. UserID is the authenticated owner
// identity; the engine treats it as an opaque comparison key.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	engine *Engine
	done   chan struct{}
	once   sync.Once
}

// ServeWs upgrades the HTTP request and starts the read/write pumps.
func ServeWs(engine *Engine, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		engine: engine,
		done:   make(chan struct{}),
	}
	logger.Sugar.Infof("Client connected: %s (user %s)", client.ID, client.UserID)

	go client.writePump()
	go client.readPump()
}

// enqueue queues an outbound message, dropping it if the client has gone
// away. A participant whose buffer stays full is disconnected rather than
// allowed to stall the room.
func (c *Client) enqueue(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling message for client %s: %v", c.ID, err)
		return
	}
	select {
	case <-c.done:
	case c.Send <- raw:
	default:
		logger.Sugar.Warnf("Client %s's send buffer is full. Disconnecting.", c.ID)
		c.close()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.engine.Disconnect(c)
		c.close()
		logger.Sugar.Infof("Client disconnected: %s", c.ID)
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message from client %s: %v", c.ID, err)
			continue
		}

		if err := c.engine.Handle(c, msg); err != nil {
			// Fire-and-forget contract: failures are logged for operators
			// but never sent back to the participant as a protocol error.
			logger.Sugar.Errorf("Error handling %s from client %s: %v", msg.Event, c.ID, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.Send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Connection is dead
			}
		}
	}
}
