package types

import (
	"time"
)

// Identity is the trusted handle bound to a connection once its credential
// has been verified.
type Identity struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
}

type GroupMessage struct {
	Id     string    `json:"id"`
	From   string    `json:"from"`
	Room   string    `json:"room"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

type PrivateMessage struct {
	Id     string    `json:"id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}
