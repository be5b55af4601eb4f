package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/keylock"
	"github.com/npezzotti/go-chatgateway/internal/rooms"
	"github.com/npezzotti/go-chatgateway/internal/stats"
	"golang.org/x/time/rate"
)

// persistTimeout bounds every store call made while routing a message.
const persistTimeout = 5 * time.Second

var ErrShuttingDown = errors.New("chat server is shutting down")

type ChatServer struct {
	log      *log.Logger
	store    database.MessageStore
	registry *rooms.Registry
	stats    stats.StatsProvider
	// rooms is built once in NewChatServer and never mutated.
	rooms     map[string]*Room
	addresses *addressBook
	pairs     *keylock.Map

	clients     map[*Client]struct{}
	clientsLock sync.Mutex
	clientsWg   sync.WaitGroup
	// stopping is set under clientsLock once Shutdown begins.
	stopping bool

	messageRate  rate.Limit
	messageBurst int

	ctx    context.Context
	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

type Option func(*ChatServer)

// WithRateLimit caps the requests a single session may issue. A
// non-positive rate disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cs *ChatServer) {
		if perSecond <= 0 {
			cs.messageRate = rate.Inf
		} else {
			cs.messageRate = rate.Limit(perSecond)
		}
		cs.messageBurst = max(burst, 1)
	}
}

func NewChatServer(logger *log.Logger, store database.MessageStore, registry *rooms.Registry, su stats.StatsProvider, opts ...Option) (*ChatServer, error) {
	if store == nil {
		return nil, errors.New("message store is required")
	}
	if registry == nil {
		return nil, errors.New("room registry is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs := &ChatServer{
		log:          logger,
		store:        store,
		registry:     registry,
		stats:        su,
		rooms:        make(map[string]*Room),
		addresses:    newAddressBook(),
		pairs:        keylock.New(),
		clients:      make(map[*Client]struct{}),
		messageRate:  rate.Inf,
		messageBurst: 1,
		ctx:          ctx,
		cancel:       cancel,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cs)
	}

	for _, name := range registry.List() {
		cs.rooms[name] = newRoom(name, cs)
	}

	su.RegisterMetric(stats.NumActiveClients)
	su.RegisterMetric(stats.NumActiveRooms)
	su.RegisterMetric(stats.NumGroupMessages)
	su.RegisterMetric(stats.NumPrivateMessages)

	return cs, nil
}

// Run starts a goroutine for every configured room and blocks until
// Shutdown is called.
func (cs *ChatServer) Run() {
	for _, r := range cs.rooms {
		go r.start()
	}

	<-cs.stop

	cs.log.Println("shutting down rooms")
	for _, r := range cs.rooms {
		close(r.exit)
		<-r.done
	}

	close(cs.done)
}

// RegisterClient makes c addressable for private delivery and sends it
// the session-ready event. It returns ErrShuttingDown once Shutdown has
// been called.
func (cs *ChatServer) RegisterClient(c *Client) error {
	cs.clientsLock.Lock()
	if cs.stopping {
		cs.clientsLock.Unlock()
		return ErrShuttingDown
	}
	cs.clients[c] = struct{}{}
	cs.clientsWg.Add(1)
	cs.clientsLock.Unlock()

	cs.addresses.register(c)
	cs.stats.Incr(stats.NumActiveClients)
	cs.log.Printf("registered connection %s for %q, %d identities online", c.id, c.identity.Username, cs.addresses.len())

	c.queueMessage(readyEvent(c.identity.Username))
	return nil
}

func (cs *ChatServer) unregisterClient(c *Client) {
	cs.addresses.unregister(c)

	cs.clientsLock.Lock()
	_, ok := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if ok {
		cs.stats.Decr(stats.NumActiveClients)
		cs.log.Printf("removed connection %s for %q", c.id, c.identity.Username)
		cs.clientsWg.Done()
	}
}

func (cs *ChatServer) getRoom(name string) *Room {
	if !cs.registry.IsValid(name) {
		return nil
	}
	return cs.rooms[name]
}

// Shutdown disconnects every client, waits for them to release their
// rooms and then stops the rooms.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	defer cs.cancel()

	cs.clientsLock.Lock()
	cs.stopping = true
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	released := make(chan struct{})
	go func() {
		cs.clientsWg.Wait()
		close(released)
	}()

	select {
	case <-released:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
