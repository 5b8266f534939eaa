package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256

	// doc.load carries a whole construction.
	maxMsgSize = 1 << 20
)

// Client is one websocket connection to a scene.
//
// Outgoing messages are queued on send and written by WritePump. Once the
// client is closed nothing more is queued; the write pump flushes what is
// already there and hangs up. The send channel itself is never closed, so
// a Send racing with Close is dropped instead of panicking.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}

	// stale is set when a message had to be dropped. The write pump asks
	// the hub for a fresh doc.sync once the queue has drained.
	stale atomic.Bool

	UserID      string
	DisplayName string
	SceneID     string
	ClientID    string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, displayName, sceneID, clientID string) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		UserID:      userID,
		DisplayName: displayName,
		SceneID:     sceneID,
		ClientID:    clientID,
	}
}

// ReadPump decodes client messages and hands them to the hub until the
// connection drops. It unregisters the client on the way out.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				slog.Debug("read error", "error", err, "user", c.UserID, "scene", c.SceneID)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "user", c.UserID)
			if reply, err := newMessage(TypeError, ErrorPayload{Message: "malformed message"}); err == nil {
				c.Send(reply)
			}
			continue
		}

		msg.UserID = c.UserID
		msg.ClientID = c.ClientID
		msg.SceneID = c.SceneID

		c.hub.handleMessage(c, &msg)
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings. It returns when the client is closed, a write fails or ctx ends.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(ctx, data); err != nil {
				slog.Debug("write error", "error", err, "user", c.UserID)
				return
			}
			if len(c.send) == 0 && c.stale.CompareAndSwap(true, false) {
				c.hub.resync(c)
			}

		case <-c.done:
			c.flush(ctx)
			return

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) write(ctx context.Context, data []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// flush writes whatever is still queued, such as the error that explains
// why the client is being turned away.
func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case data := <-c.send:
			if err := c.write(ctx, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues msg for the write pump. A slow client loses messages rather
// than stalling the room and is sent a doc.sync once it catches up. Send
// on a closed client does nothing.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		if !c.stale.Swap(true) {
			slog.Warn("client send buffer full, dropping until resync", "user", c.UserID, "scene", c.SceneID)
		}
	}
}

// Close stops queueing messages for the client and tells the write pump
// to finish. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}
