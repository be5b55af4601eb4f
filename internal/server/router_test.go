package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func privateMsg(id int, to, text string) *ClientMessage {
	return &ClientMessage{BaseMessage: BaseMessage{Id: id}, Private: &Private{To: to, Text: text}}
}

func privates(msgs []*ServerMessage) []types.PrivateMessage {
	var out []types.PrivateMessage
	for _, m := range msgs {
		if m.Private != nil {
			out = append(out, *m.Private)
		}
	}
	return out
}

func Test_pairKey(t *testing.T) {
	assert.Equal(t, pairKey("alice", "bob"), pairKey("bob", "alice"), "expected key to be order independent")
	assert.NotEqual(t, pairKey("a", "bc"), pairKey("ab", "c"), "expected participants to stay distinct")
}

func TestRoutePrivate(t *testing.T) {
	t.Run("offline recipient", func(t *testing.T) {
		store := newBadgerTestStore(t)
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")

		alice.handleMessage(privateMsg(1, "carol", "hey"))

		msgs := drain(alice)
		resp := responses(msgs)
		require.Len(t, resp, 1)
		assert.True(t, resp[0].Response.Ok, "expected offline delivery to be accepted")

		echoed := privates(msgs)
		require.Len(t, echoed, 1, "expected the sender to receive its own message")
		assert.Equal(t, "alice", echoed[0].From)
		assert.Equal(t, "carol", echoed[0].To)
		assert.Equal(t, "hey", echoed[0].Text)

		saved, err := store.QueryPrivate(context.Background(), "carol", "alice", 0)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, "hey", saved[0].Body)

		// carol connects later and sees nothing live
		carol := newTestClient(t, cs, "carol")
		assert.Empty(t, drain(carol))
	})

	t.Run("delivered to every session of both parties", func(t *testing.T) {
		cs := newTestChatServer(t, newBadgerTestStore(t))
		alice := newTestClient(t, cs, "alice")
		alicePhone := newTestClient(t, cs, "alice")
		bob := newTestClient(t, cs, "bob")
		bobPhone := newTestClient(t, cs, "bob")
		carol := newTestClient(t, cs, "carol")

		alice.handleMessage(privateMsg(1, " bob ", "hey"))

		assert.Len(t, privates(drain(alice)), 1)
		assert.Len(t, privates(drain(alicePhone)), 1)
		assert.Len(t, privates(drain(bob)), 1)
		assert.Len(t, privates(drain(bobPhone)), 1)
		assert.Empty(t, drain(carol))
	})

	t.Run("self message delivered once per session", func(t *testing.T) {
		store := newBadgerTestStore(t)
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")

		alice.handleMessage(privateMsg(1, "alice", "note to self"))

		assert.Len(t, privates(drain(alice)), 1)
		saved, err := store.QueryPrivate(context.Background(), "alice", "alice", 0)
		require.NoError(t, err)
		assert.Len(t, saved, 1)
	})

	t.Run("validation", func(t *testing.T) {
		tcases := []struct {
			name    string
			to      string
			text    string
			message string
		}{
			{"missing recipient", "", "hey", "missing recipient"},
			{"blank recipient", "   ", "hey", "missing recipient"},
			{"empty text", "bob", "", "empty message"},
			{"whitespace text", "bob", " \t ", "empty message"},
		}

		store := &database.MockStore{}
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")
		bob := newTestClient(t, cs, "bob")

		for _, tc := range tcases {
			t.Run(tc.name, func(t *testing.T) {
				alice.handleMessage(privateMsg(5, tc.to, tc.text))

				msgs := drain(alice)
				require.Len(t, msgs, 1)
				assert.Equal(t, http.StatusBadRequest, msgs[0].Response.ResponseCode)
				assert.Equal(t, tc.message, msgs[0].Response.Message)
				assert.Empty(t, drain(bob))
			})
		}

		store.AssertNotCalled(t, "AppendPrivate", mock.Anything, mock.Anything)
	})

	t.Run("storage failure aborts delivery", func(t *testing.T) {
		store := &database.MockStore{}
		store.On("AppendPrivate", mock.Anything, mock.Anything).
			Return(database.PrivateMessage{}, errors.New("connection refused")).Once()
		defer store.AssertExpectations(t)

		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")
		bob := newTestClient(t, cs, "bob")

		alice.handleMessage(privateMsg(1, "bob", "hey"))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, "storage failure", msgs[0].Response.Message)
		assert.Empty(t, drain(bob))
	})
}

func TestRelayTyping(t *testing.T) {
	store := &database.MockStore{}
	cs := newTestChatServer(t, store)
	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")

	alice.handleMessage(&ClientMessage{Typing: &Typing{To: "bob", IsTyping: true}})
	alice.handleMessage(&ClientMessage{Typing: &Typing{To: "", IsTyping: true}})
	alice.handleMessage(&ClientMessage{Typing: &Typing{To: "carol", IsTyping: true}})
	alice.handleMessage(&ClientMessage{Typing: &Typing{To: "bob", IsTyping: false}})

	assert.Empty(t, drain(alice), "expected typing to never be acknowledged")

	msgs := drain(bob)
	require.Len(t, msgs, 2)
	assert.Equal(t, &TypingSignal{From: "alice", IsTyping: true}, msgs[0].Typing)
	assert.Equal(t, &TypingSignal{From: "alice", IsTyping: false}, msgs[1].Typing)
	assert.Nil(t, msgs[0].Private)

	store.AssertNotCalled(t, "AppendPrivate", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "AppendGroup", mock.Anything, mock.Anything)
}

func TestGroupDeliveryOrder(t *testing.T) {
	store := newBadgerTestStore(t)
	cs := newTestChatServer(t, store)

	const perSender = 40
	senders := []*Client{newTestClient(t, cs, "alice"), newTestClient(t, cs, "carol")}
	bob := newTestClient(t, cs, "bob")

	for _, c := range append(senders, bob) {
		c.handleMessage(joinMsg(1, "general"))
	}
	for _, c := range append(senders, bob) {
		drain(c)
	}

	var wg sync.WaitGroup
	for _, c := range senders {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := range perSender {
				c.handleMessage(publishMsg(i+1, fmt.Sprintf("%s-%d", c.identity.Username, i)))
			}
		}(c)
	}
	wg.Wait()

	saved, err := store.QueryGroup(context.Background(), "general", 0)
	require.NoError(t, err)
	require.Len(t, saved, 2*perSender)

	persisted := make([]string, len(saved))
	for i, m := range saved {
		persisted[i] = m.Id.String()
	}

	for _, c := range append(senders, bob) {
		delivered := groups(drain(c))
		ids := make([]string, len(delivered))
		for i, m := range delivered {
			ids[i] = m.Id
		}
		assert.Equal(t, persisted, ids, "expected %s to observe persistence order", c.identity.Username)
	}
}

func TestAddressBook(t *testing.T) {
	ab := newAddressBook()
	a1 := &Client{identity: types.Identity{Username: "alice"}}
	a2 := &Client{identity: types.Identity{Username: "alice"}}
	b := &Client{identity: types.Identity{Username: "bob"}}

	ab.register(a1)
	ab.register(a2)
	ab.register(b)
	assert.ElementsMatch(t, []*Client{a1, a2}, ab.addressOf("alice"))
	assert.Equal(t, []*Client{b}, ab.addressOf("bob"))
	assert.Empty(t, ab.addressOf("carol"))
	assert.Equal(t, 2, ab.len())

	ab.unregister(a1)
	assert.Equal(t, []*Client{a2}, ab.addressOf("alice"))
	ab.unregister(a2)
	ab.unregister(a2)
	assert.Empty(t, ab.addressOf("alice"))
	assert.Equal(t, 1, ab.len())
}
