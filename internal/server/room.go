package server

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/history"
	"github.com/npezzotti/go-chatgateway/internal/stats"
)

// Room serializes membership changes and publishes for one allow-listed
// room. Every request is handled on the room's own goroutine, so members
// observe group messages in the order they were persisted.
type Room struct {
	name          string
	cs            *ChatServer
	log           *log.Logger
	joinChan      chan *ClientMessage
	leaveChan     chan *ClientMessage
	clientMsgChan chan *ClientMessage
	clients       map[*Client]struct{}
	clientLock    sync.RWMutex
	// exit is used to signal the room to exit
	exit chan struct{}
	done chan struct{}
}

func newRoom(name string, cs *ChatServer) *Room {
	return &Room{
		name:          name,
		cs:            cs,
		log:           cs.log,
		joinChan:      make(chan *ClientMessage, 256),
		leaveChan:     make(chan *ClientMessage, 256),
		clientMsgChan: make(chan *ClientMessage, 256),
		clients:       make(map[*Client]struct{}),
		exit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.name)
	defer close(r.done)

	for {
		select {
		case msg := <-r.joinChan:
			r.handleJoin(msg)
			msg.markProcessed()
		case msg := <-r.leaveChan:
			r.handleLeave(msg)
			msg.markProcessed()
		case msg := <-r.clientMsgChan:
			if msg.Publish != nil {
				r.saveAndBroadcast(msg)
			}
			msg.markProcessed()
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.name)

	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if len(r.clients) > 0 {
		r.cs.stats.Decr(stats.NumActiveRooms)
	}
	for c := range r.clients {
		c.setRoom(nil)
		delete(r.clients, c)
	}
}

func (r *Room) handleJoin(msg *ClientMessage) {
	c := msg.client
	if r.hasClient(c) {
		c.queueMessage(NoErrOK(msg.Id, map[string]any{"room": r.name}))
		return
	}

	r.addClient(c)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"room": r.name}))

	r.broadcast(noticeEvent(r.name, c.identity.Username+" joined."))
}

func (r *Room) handleLeave(msg *ClientMessage) {
	c := msg.client
	if r.removeClient(c) {
		r.broadcast(noticeEvent(r.name, c.identity.Username+" left."))
	}

	if !msg.implicit {
		c.queueMessage(NoErrOK(msg.Id, nil))
	}
}

func (r *Room) saveAndBroadcast(msg *ClientMessage) {
	c := msg.client
	if !r.hasClient(c) {
		c.queueMessage(ErrNotInRoom(msg.Id))
		return
	}

	if !r.cs.registry.IsValid(r.name) {
		c.queueMessage(ErrInvalidRoom(msg.Id))
		return
	}

	text := strings.TrimSpace(msg.Publish.Text)
	if text == "" {
		c.queueMessage(ErrEmptyPayload(msg.Id))
		return
	}

	ctx, cancel := context.WithTimeout(r.cs.ctx, persistTimeout)
	defer cancel()

	saved, err := r.cs.store.AppendGroup(ctx, database.NewGroupMessage{
		Sender: c.identity.Username,
		Room:   r.name,
		Body:   text,
	})
	if err != nil {
		r.log.Printf("error saving message to room %q: %v", r.name, err)
		c.queueMessage(ErrStorageFailure(msg.Id))
		return
	}

	r.cs.stats.Incr(stats.NumGroupMessages)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"id": saved.Id.String()}))

	r.broadcast(groupEvent(history.GroupMessage(saved)))
}

func (r *Room) hasClient(c *Client) bool {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	_, ok := r.clients[c]
	return ok
}

func (r *Room) addClient(c *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	r.clients[c] = struct{}{}
	c.setRoom(r)

	if len(r.clients) == 1 {
		r.cs.stats.Incr(stats.NumActiveRooms)
	}
	r.log.Printf("added client %q to room %q", c.identity.Username, r.name)
}

// removeClient reports whether c was a member.
func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}

	delete(r.clients, c)
	c.setRoom(nil)

	if len(r.clients) == 0 {
		r.cs.stats.Decr(stats.NumActiveRooms)
	}
	r.log.Printf("removed client %q from room %q", c.identity.Username, r.name)
	return true
}

// members returns a snapshot of the sessions currently in the room.
func (r *Room) members() []*Client {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()

	members := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	return members
}

func (r *Room) broadcast(msg *ServerMessage) {
	for _, client := range r.members() {
		client.queueMessage(msg)
	}
}
