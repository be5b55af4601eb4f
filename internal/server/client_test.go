package server

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/testutil"
	"github.com/npezzotti/go-chatgateway/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func joinMsg(id int, room string) *ClientMessage {
	return &ClientMessage{BaseMessage: BaseMessage{Id: id}, Join: &Join{Room: room}}
}

func leaveMsg(id int) *ClientMessage {
	return &ClientMessage{BaseMessage: BaseMessage{Id: id}, Leave: &Leave{}}
}

func publishMsg(id int, text string) *ClientMessage {
	return &ClientMessage{BaseMessage: BaseMessage{Id: id}, Publish: &Publish{Text: text}}
}

func responses(msgs []*ServerMessage) []*ServerMessage {
	var out []*ServerMessage
	for _, m := range msgs {
		if m.Response != nil {
			out = append(out, m)
		}
	}
	return out
}

func notices(msgs []*ServerMessage) []string {
	var out []string
	for _, m := range msgs {
		if m.Notice != nil {
			out = append(out, m.Notice.Room+": "+m.Notice.Text)
		}
	}
	return out
}

func groups(msgs []*ServerMessage) []types.GroupMessage {
	var out []types.GroupMessage
	for _, m := range msgs {
		if m.Group != nil {
			out = append(out, *m.Group)
		}
	}
	return out
}

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")
		assert.Len(t, c.send, 1, "expected a message to be queued")
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func TestClient_Join(t *testing.T) {
	cs := newTestChatServer(t, &database.MockStore{})
	alice := newTestClient(t, cs, "alice")

	t.Run("unknown room leaves state unchanged", func(t *testing.T) {
		alice.handleMessage(joinMsg(1, "nope"))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, http.StatusNotFound, msgs[0].Response.ResponseCode)
		assert.Equal(t, "unknown room", msgs[0].Response.Message)
		assert.Nil(t, alice.currentRoom(), "expected client to remain unjoined")
	})

	t.Run("join room", func(t *testing.T) {
		alice.handleMessage(joinMsg(2, "general"))

		msgs := drain(alice)
		resp := responses(msgs)
		require.Len(t, resp, 1)
		assert.Equal(t, 2, resp[0].Id)
		assert.True(t, resp[0].Response.Ok)
		assert.Equal(t, map[string]any{"room": "general"}, resp[0].Response.Data)
		assert.Equal(t, []string{"general: alice joined."}, notices(msgs))
		assert.Equal(t, cs.getRoom("general"), alice.currentRoom())
	})

	t.Run("rejoin current room is acknowledged without notices", func(t *testing.T) {
		alice.handleMessage(joinMsg(3, " general "))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Response.Ok)
		assert.Len(t, cs.getRoom("general").members(), 1)
	})

	t.Run("unknown room while joined keeps the current room", func(t *testing.T) {
		alice.handleMessage(joinMsg(4, "nope"))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.False(t, msgs[0].Response.Ok)
		assert.Equal(t, cs.getRoom("general"), alice.currentRoom())
		assert.Len(t, cs.getRoom("general").members(), 1)
	})
}

func TestClient_SwitchRoom(t *testing.T) {
	cs := newTestChatServer(t, &database.MockStore{})
	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")

	alice.handleMessage(joinMsg(1, "general"))
	bob.handleMessage(joinMsg(1, "general"))
	drain(alice)
	drain(bob)

	alice.handleMessage(joinMsg(2, "tech"))

	assert.Equal(t, []string{"general: alice left."}, notices(drain(bob)), "expected remaining members to see the leave")
	aliceMsgs := drain(alice)
	assert.Equal(t, []string{"tech: alice joined."}, notices(aliceMsgs), "expected no general notices after leaving")
	require.Len(t, responses(aliceMsgs), 1, "expected only the join to be acknowledged")

	assert.Equal(t, cs.getRoom("tech"), alice.currentRoom())
	assert.Equal(t, []*Client{bob}, cs.getRoom("general").members())
	assert.Equal(t, []*Client{alice}, cs.getRoom("tech").members())
}

func TestClient_Leave(t *testing.T) {
	cs := newTestChatServer(t, &database.MockStore{})
	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")

	t.Run("leave while unjoined", func(t *testing.T) {
		alice.handleMessage(leaveMsg(1))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.True(t, msgs[0].Response.Ok)
		assert.Equal(t, 1, msgs[0].Id)
	})

	t.Run("leave room", func(t *testing.T) {
		alice.handleMessage(joinMsg(2, "general"))
		bob.handleMessage(joinMsg(2, "general"))
		drain(alice)
		drain(bob)

		alice.handleMessage(leaveMsg(3))

		msgs := drain(alice)
		require.Len(t, msgs, 1, "expected only the acknowledgement")
		assert.True(t, msgs[0].Response.Ok)
		assert.Equal(t, 3, msgs[0].Id)
		assert.Nil(t, alice.currentRoom())
		assert.Equal(t, []string{"general: alice left."}, notices(drain(bob)))
	})
}

func TestClient_Disconnect(t *testing.T) {
	cs := newTestChatServer(t, &database.MockStore{})
	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")

	alice.handleMessage(joinMsg(1, "general"))
	bob.handleMessage(joinMsg(1, "general"))
	drain(bob)

	alice.cleanup()

	assert.Equal(t, []string{"general: alice left."}, notices(drain(bob)))
	assert.Equal(t, []*Client{bob}, cs.getRoom("general").members())
	assert.Empty(t, cs.addresses.addressOf("alice"), "expected address to be released")
	select {
	case <-alice.stop:
	default:
		t.Error("expected client to be stopped")
	}
}

func TestClient_Publish(t *testing.T) {
	t.Run("delivered to every member including sender", func(t *testing.T) {
		store := newBadgerTestStore(t)
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")
		bob := newTestClient(t, cs, "bob")
		carol := newTestClient(t, cs, "carol")

		alice.handleMessage(joinMsg(1, "general"))
		bob.handleMessage(joinMsg(1, "general"))
		carol.handleMessage(joinMsg(1, "tech"))
		drain(alice)
		drain(bob)
		drain(carol)

		alice.handleMessage(publishMsg(2, "  hi  "))

		aliceMsgs := drain(alice)
		resp := responses(aliceMsgs)
		require.Len(t, resp, 1)
		assert.True(t, resp[0].Response.Ok)
		assert.Equal(t, 2, resp[0].Id)

		for _, got := range [][]types.GroupMessage{groups(aliceMsgs), groups(drain(bob))} {
			require.Len(t, got, 1)
			assert.Equal(t, "alice", got[0].From)
			assert.Equal(t, "general", got[0].Room)
			assert.Equal(t, "hi", got[0].Text)
			assert.Equal(t, resp[0].Response.Data["id"], got[0].Id)
		}
		assert.Empty(t, drain(carol), "expected no delivery to other rooms")

		saved, err := store.QueryGroup(context.Background(), "general", 0)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, "hi", saved[0].Body)
		assert.Equal(t, "alice", saved[0].Sender)
	})

	t.Run("rejected requests persist nothing", func(t *testing.T) {
		store := &database.MockStore{}
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")

		alice.handleMessage(publishMsg(1, "hi"))
		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, http.StatusConflict, msgs[0].Response.ResponseCode)
		assert.Equal(t, "not in a room", msgs[0].Response.Message)

		alice.handleMessage(joinMsg(2, "general"))
		drain(alice)

		alice.handleMessage(publishMsg(3, " \t\n"))
		msgs = drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, http.StatusBadRequest, msgs[0].Response.ResponseCode)
		assert.Equal(t, "empty message", msgs[0].Response.Message)

		store.AssertNotCalled(t, "AppendGroup", mock.Anything, mock.Anything)
	})

	t.Run("storage failure aborts delivery", func(t *testing.T) {
		store := &database.MockStore{}
		store.On("AppendGroup", mock.Anything, database.NewGroupMessage{
			Sender: "alice",
			Room:   "general",
			Body:   "hi",
		}).Return(database.GroupMessage{}, errors.New("disk full")).Once()
		defer store.AssertExpectations(t)

		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")
		bob := newTestClient(t, cs, "bob")
		alice.handleMessage(joinMsg(1, "general"))
		bob.handleMessage(joinMsg(1, "general"))
		drain(alice)
		drain(bob)

		alice.handleMessage(publishMsg(2, "hi"))

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, http.StatusInternalServerError, msgs[0].Response.ResponseCode)
		assert.Equal(t, "storage failure", msgs[0].Response.Message)
		assert.Empty(t, drain(bob), "expected no broadcast of an unpersisted message")
	})

	t.Run("room outside the allow list", func(t *testing.T) {
		store := &database.MockStore{}
		cs := newTestChatServer(t, store)
		alice := newTestClient(t, cs, "alice")

		ghost := newRoom("ghost", cs)
		ghost.addClient(alice)
		ghost.saveAndBroadcast(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1},
			Publish:     &Publish{Text: "boo"},
			client:      alice,
		})
		ghost.removeClient(alice)

		msgs := drain(alice)
		require.Len(t, msgs, 1)
		assert.Equal(t, "unknown room", msgs[0].Response.Message)
		store.AssertNotCalled(t, "AppendGroup", mock.Anything, mock.Anything)
	})
}

func TestClient_InvalidMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockStore{})
	alice := newTestClient(t, cs, "alice")

	alice.handleMessage(&ClientMessage{BaseMessage: BaseMessage{Id: 9}})

	msgs := drain(alice)
	require.Len(t, msgs, 1)
	assert.Equal(t, 9, msgs[0].Id)
	assert.Equal(t, "invalid message format", msgs[0].Response.Message)
}

func TestClient_RateLimit(t *testing.T) {
	store := &database.MockStore{}
	cs := newTestChatServer(t, store, WithRateLimit(0.001, 1))
	alice := newTestClient(t, cs, "alice")

	alice.handleMessage(leaveMsg(1))
	alice.handleMessage(publishMsg(2, "hi"))
	alice.handleMessage(&ClientMessage{Typing: &Typing{To: "bob", IsTyping: true}})

	msgs := drain(alice)
	require.Len(t, msgs, 2, "expected the throttled typing signal to be dropped silently")
	assert.True(t, msgs[0].Response.Ok)
	assert.Equal(t, 2, msgs[1].Id)
	assert.Equal(t, http.StatusTooManyRequests, msgs[1].Response.ResponseCode)
	store.AssertNotCalled(t, "AppendGroup", mock.Anything, mock.Anything)
}
