package server

import (
	"context"
	"strings"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/history"
	"github.com/npezzotti/go-chatgateway/internal/stats"
	"github.com/samber/lo"
)

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

// routePrivate persists a private message and delivers it to every live
// session of the recipient and of the sender. The pair lock is held
// across persist and fan-out so both sides see one conversation order.
func (cs *ChatServer) routePrivate(msg *ClientMessage) {
	c := msg.client
	to := strings.TrimSpace(msg.Private.To)
	if to == "" {
		c.queueMessage(ErrMissingRecipient(msg.Id))
		return
	}

	text := strings.TrimSpace(msg.Private.Text)
	if text == "" {
		c.queueMessage(ErrEmptyPayload(msg.Id))
		return
	}

	from := c.identity.Username
	unlock := cs.pairs.Lock(pairKey(from, to))
	defer unlock()

	ctx, cancel := context.WithTimeout(cs.ctx, persistTimeout)
	defer cancel()

	saved, err := cs.store.AppendPrivate(ctx, database.NewPrivateMessage{
		Sender:    from,
		Recipient: to,
		Body:      text,
	})
	if err != nil {
		cs.log.Printf("error saving private message from %q to %q: %v", from, to, err)
		c.queueMessage(ErrStorageFailure(msg.Id))
		return
	}

	cs.stats.Incr(stats.NumPrivateMessages)
	c.queueMessage(NoErrOK(msg.Id, map[string]any{"id": saved.Id.String()}))

	event := privateEvent(history.PrivateMessage(saved))
	targets := lo.Uniq(append(cs.addresses.addressOf(to), cs.addresses.addressOf(from)...))
	for _, target := range targets {
		target.queueMessage(event)
	}
}

// relayTyping forwards an ephemeral typing signal to the recipient's live
// sessions. It is never persisted and never acknowledged.
func (cs *ChatServer) relayTyping(c *Client, typing *Typing) {
	to := strings.TrimSpace(typing.To)
	if to == "" {
		return
	}

	event := typingEvent(c.identity.Username, typing.IsTyping)
	for _, target := range cs.addresses.addressOf(to) {
		target.queueMessage(event)
	}
}
