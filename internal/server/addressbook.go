package server

import (
	"hash/fnv"
	"sync"
)

const addressShards = 32

// addressBook maps an identity to its live sessions. Each shard has its own
// lock so unrelated identities never contend.
type addressBook struct {
	shards [addressShards]addressShard
}

type addressShard struct {
	mu       sync.Mutex
	sessions map[string]map[*Client]struct{}
}

func newAddressBook() *addressBook {
	ab := &addressBook{}
	for i := range ab.shards {
		ab.shards[i].sessions = make(map[string]map[*Client]struct{})
	}
	return ab
}

func (ab *addressBook) shard(username string) *addressShard {
	h := fnv.New32a()
	h.Write([]byte(username))
	return &ab.shards[h.Sum32()%addressShards]
}

func (ab *addressBook) register(c *Client) {
	username := c.identity.Username
	s := ab.shard(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[username] == nil {
		s.sessions[username] = make(map[*Client]struct{})
	}
	s.sessions[username][c] = struct{}{}
}

func (ab *addressBook) unregister(c *Client) {
	username := c.identity.Username
	s := ab.shard(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessions, ok := s.sessions[username]; ok {
		delete(sessions, c)
		if len(sessions) == 0 {
			delete(s.sessions, username)
		}
	}
}

// addressOf returns a snapshot of the live sessions for username.
func (ab *addressBook) addressOf(username string) []*Client {
	s := ab.shard(username)
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*Client, 0, len(s.sessions[username]))
	for c := range s.sessions[username] {
		sessions = append(sessions, c)
	}
	return sessions
}

func (ab *addressBook) len() int {
	n := 0
	for i := range ab.shards {
		s := &ab.shards[i]
		s.mu.Lock()
		n += len(s.sessions)
		s.mu.Unlock()
	}
	return n
}
