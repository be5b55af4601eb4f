package database

import (
	"time"

	"github.com/google/uuid"
)

type Account struct {
	Username     string    `json:"username"`
	FirstName    string    `json:"firstname"`
	LastName     string    `json:"lastname"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateAccountParams struct {
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
}

type NewGroupMessage struct {
	Sender string
	Room   string
	Body   string
}

type NewPrivateMessage struct {
	Sender    string
	Recipient string
	Body      string
}

type GroupMessage struct {
	Id     uuid.UUID `json:"id"`
	Seq    uint64    `json:"seq"`
	Sender string    `json:"sender"`
	Room   string    `json:"room"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

type PrivateMessage struct {
	Id        uuid.UUID `json:"id"`
	Seq       uint64    `json:"seq"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}
