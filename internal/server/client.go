package server

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatgateway/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one session: a verified identity bound to one websocket
// connection for its whole lifetime, in at most one room at a time.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	identity   types.Identity
	send       chan *ServerMessage
	limiter    *rate.Limiter
	room       *Room
	roomLock   sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(identity types.Identity, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	id, err := shortid.Generate()
	if err != nil {
		id = identity.Username
	}

	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		identity:   identity,
		send:       make(chan *ServerMessage, 256),
		limiter:    rate.NewLimiter(cs.messageRate, cs.messageBurst),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.sendMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		c.handleMessage(&msg)
	}
}

// handleMessage applies one client request. It returns once the request
// has been fully processed, so requests from one session apply in order.
func (c *Client) handleMessage(msg *ClientMessage) {
	msg.client = c
	msg.Timestamp = Now()

	if !c.limiter.Allow() {
		if msg.Typing == nil {
			c.queueMessage(ErrRateLimited(msg.Id))
		}
		return
	}

	switch {
	case msg.Join != nil:
		c.joinRoom(msg)
	case msg.Leave != nil:
		c.leaveRoom(msg)
	case msg.Publish != nil:
		c.publish(msg)
	case msg.Private != nil:
		c.chatServer.routePrivate(msg)
	case msg.Typing != nil:
		c.chatServer.relayTyping(c, msg.Typing)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to send message to client %s, channel is full", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup releases the room membership and the address entry before
// the writer is stopped.
func (c *Client) cleanup() {
	if r := c.currentRoom(); r != nil {
		c.dispatch(r, r.leaveChan, &ClientMessage{
			Leave:    &Leave{},
			implicit: true,
		})
	}

	c.chatServer.unregisterClient(c)
	c.stopClient()
}

func (c *Client) joinRoom(msg *ClientMessage) {
	name := strings.TrimSpace(msg.Join.Room)
	next := c.chatServer.getRoom(name)
	if next == nil {
		c.queueMessage(ErrInvalidRoom(msg.Id))
		return
	}

	current := c.currentRoom()
	if current == next {
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"room": next.name}))
		return
	}

	if current != nil {
		if !c.dispatch(current, current.leaveChan, &ClientMessage{
			Leave:    &Leave{},
			implicit: true,
		}) {
			c.queueMessage(ErrServiceUnavailable(msg.Id))
			return
		}
	}

	if !c.dispatch(next, next.joinChan, msg) {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	r := c.currentRoom()
	if r == nil {
		c.queueMessage(NoErrOK(msg.Id, nil))
		return
	}

	if !c.dispatch(r, r.leaveChan, msg) {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) publish(msg *ClientMessage) {
	r := c.currentRoom()
	if r == nil {
		c.queueMessage(ErrNotInRoom(msg.Id))
		return
	}

	if strings.TrimSpace(msg.Publish.Text) == "" {
		c.queueMessage(ErrEmptyPayload(msg.Id))
		return
	}

	if !c.dispatch(r, r.clientMsgChan, msg) {
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// dispatch hands msg to the room goroutine and waits until it has been
// handled. It returns false if the room has exited.
func (c *Client) dispatch(r *Room, ch chan *ClientMessage, msg *ClientMessage) bool {
	msg.client = c
	msg.processed = make(chan struct{})

	select {
	case ch <- msg:
	case <-r.done:
		return false
	}

	select {
	case <-msg.processed:
		return true
	case <-r.done:
		return false
	}
}

func (c *Client) setRoom(r *Room) {
	c.roomLock.Lock()
	defer c.roomLock.Unlock()

	c.room = r
}

func (c *Client) currentRoom() *Room {
	c.roomLock.RLock()
	defer c.roomLock.RUnlock()

	return c.room
}

func (m *ClientMessage) markProcessed() {
	if m.processed != nil {
		close(m.processed)
	}
}
