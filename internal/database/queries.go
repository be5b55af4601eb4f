package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func (db *PgStore) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, first_name, last_name, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING username, first_name, last_name, password_hash, created_at",
		params.Username,
		params.FirstName,
		params.LastName,
		params.PasswordHash,
		db.clock.Now(),
	)

	var a Account
	err := res.Scan(&a.Username, &a.FirstName, &a.LastName, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Account{}, ErrDuplicateAccount
		}
		return Account{}, err
	}

	return a, nil
}

func (db *PgStore) GetAccount(ctx context.Context, username string) (Account, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT username, first_name, last_name, password_hash, created_at FROM accounts "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var a Account
	err := row.Scan(&a.Username, &a.FirstName, &a.LastName, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}

	return a, err
}

func (db *PgStore) AppendGroup(ctx context.Context, msg NewGroupMessage) (GroupMessage, error) {
	unlock := db.locks.Lock("grp/" + msg.Room)
	defer unlock()

	m := GroupMessage{
		Id:     uuid.New(),
		Sender: msg.Sender,
		Room:   msg.Room,
		Body:   msg.Body,
		SentAt: db.clock.Now(),
	}

	var seq int64
	err := db.conn.QueryRowContext(ctx,
		"INSERT INTO group_messages (id, room, sender, body, sent_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING seq",
		m.Id, m.Room, m.Sender, m.Body, m.SentAt,
	).Scan(&seq)
	if err != nil {
		return GroupMessage{}, fmt.Errorf("insert group message: %w", err)
	}

	m.Seq = uint64(seq)
	return m, nil
}

func (db *PgStore) AppendPrivate(ctx context.Context, msg NewPrivateMessage) (PrivateMessage, error) {
	a, b := conversationKey(msg.Sender, msg.Recipient)
	unlock := db.locks.Lock("pm/" + a + "/" + b)
	defer unlock()

	m := PrivateMessage{
		Id:        uuid.New(),
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Body:      msg.Body,
		SentAt:    db.clock.Now(),
	}

	var seq int64
	err := db.conn.QueryRowContext(ctx,
		"INSERT INTO private_messages (id, sender, recipient, body, sent_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING seq",
		m.Id, m.Sender, m.Recipient, m.Body, m.SentAt,
	).Scan(&seq)
	if err != nil {
		return PrivateMessage{}, fmt.Errorf("insert private message: %w", err)
	}

	m.Seq = uint64(seq)
	return m, nil
}

func (db *PgStore) QueryGroup(ctx context.Context, room string, limit int) ([]GroupMessage, error) {
	limit = normalizeLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, seq, room, sender, body, sent_at FROM group_messages "+
			"WHERE room = $1 ORDER BY sent_at ASC, seq ASC LIMIT $2",
		room,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]GroupMessage, 0, limit)
	for rows.Next() {
		var (
			m   GroupMessage
			seq int64
		)
		if err := rows.Scan(&m.Id, &seq, &m.Room, &m.Sender, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.Seq = uint64(seq)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}

func (db *PgStore) QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]PrivateMessage, error) {
	limit = normalizeLimit(limit)

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, seq, sender, recipient, body, sent_at FROM private_messages "+
			"WHERE (sender = $1 AND recipient = $2) OR (sender = $2 AND recipient = $1) "+
			"ORDER BY sent_at ASC, seq ASC LIMIT $3",
		userA,
		userB,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]PrivateMessage, 0, limit)
	for rows.Next() {
		var (
			m   PrivateMessage
			seq int64
		)
		if err := rows.Scan(&m.Id, &seq, &m.Sender, &m.Recipient, &m.Body, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		m.Seq = uint64(seq)
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return messages, nil
}
