package database

import (
	"context"
	"errors"
)

// MaxQueryLimit bounds every history query.
const MaxQueryLimit = 200

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("account already exists")
)

// MessageStore is the append-only message history. Append is the only
// mutation; queries return messages oldest first.
type MessageStore interface {
	AppendGroup(ctx context.Context, msg NewGroupMessage) (GroupMessage, error)
	AppendPrivate(ctx context.Context, msg NewPrivateMessage) (PrivateMessage, error)
	QueryGroup(ctx context.Context, room string, limit int) ([]GroupMessage, error)
	QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]PrivateMessage, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccount(ctx context.Context, username string) (Account, error)
}

type Store interface {
	MessageStore
	AccountStore
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxQueryLimit {
		return MaxQueryLimit
	}
	return limit
}

// conversationKey orders the two participants so both directions of a
// conversation share one key.
func conversationKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
