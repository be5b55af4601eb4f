// Package history is the read-only retrieval surface over persisted
// messages, used by clients to backfill a room or a conversation.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/go-chatgateway/internal/database"
	"github.com/npezzotti/go-chatgateway/internal/rooms"
	"github.com/npezzotti/go-chatgateway/internal/types"
	"github.com/samber/lo"
)

// Limit is the most messages a single history call returns.
const Limit = database.MaxQueryLimit

var (
	ErrInvalidRoom      = errors.New("unknown room")
	ErrMissingRecipient = errors.New("missing recipient")
)

type Service struct {
	rooms *rooms.Registry
	store database.MessageStore
}

func NewService(registry *rooms.Registry, store database.MessageStore) *Service {
	return &Service{rooms: registry, store: store}
}

func (s *Service) ListRooms() []string {
	return s.rooms.List()
}

// RoomHistory returns the oldest messages of room. Surrounding whitespace
// in the name is ignored, as it is when joining.
func (s *Service) RoomHistory(ctx context.Context, room string) ([]types.GroupMessage, error) {
	room = strings.TrimSpace(room)
	if !s.rooms.IsValid(room) {
		return nil, ErrInvalidRoom
	}

	msgs, err := s.store.QueryGroup(ctx, room, Limit)
	if err != nil {
		return nil, fmt.Errorf("query group messages: %w", err)
	}

	return lo.Map(msgs, func(m database.GroupMessage, _ int) types.GroupMessage {
		return GroupMessage(m)
	}), nil
}

func (s *Service) PrivateHistory(ctx context.Context, me, other string) ([]types.PrivateMessage, error) {
	other = strings.TrimSpace(other)
	if other == "" {
		return nil, ErrMissingRecipient
	}

	msgs, err := s.store.QueryPrivate(ctx, me, other, Limit)
	if err != nil {
		return nil, fmt.Errorf("query private messages: %w", err)
	}

	return lo.Map(msgs, func(m database.PrivateMessage, _ int) types.PrivateMessage {
		return PrivateMessage(m)
	}), nil
}

// GroupMessage converts a stored group message to its wire form.
func GroupMessage(m database.GroupMessage) types.GroupMessage {
	return types.GroupMessage{
		Id:     m.Id.String(),
		From:   m.Sender,
		Room:   m.Room,
		Text:   m.Body,
		SentAt: m.SentAt,
	}
}

// PrivateMessage converts a stored private message to its wire form.
func PrivateMessage(m database.PrivateMessage) types.PrivateMessage {
	return types.PrivateMessage{
		Id:     m.Id.String(),
		From:   m.Sender,
		To:     m.Recipient,
		Text:   m.Body,
		SentAt: m.SentAt,
	}
}
