package database

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/npezzotti/go-chatgateway/internal/keylock"
)

const (
	sep          = "\x00"
	groupPrefix  = "grp" + sep
	pmPrefix     = "pm" + sep
	acctPrefix   = "acct" + sep
	sequenceKey  = "meta" + sep + "seq"
	seqBandwidth = 1000
)

// BadgerStore keeps messages in an embedded badger database. Keys are
// prefix + big endian sequence number so a prefix scan yields insertion
// order. Names inside a prefix are length-prefixed so no room or pair
// prefix can match another one's keys.
type BadgerStore struct {
	db    *badger.DB
	seq   *badger.Sequence
	clock *clock
	locks *keylock.Map
}

// NewBadgerStore opens the database at path, or an in-memory database when
// path is empty.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), seqBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	return &BadgerStore{
		db:    db,
		seq:   seq,
		clock: newClock(),
		locks: keylock.New(),
	}, nil
}

// appendSegment writes name as a uvarint length followed by its bytes.
func appendSegment(key []byte, name string) []byte {
	key = binary.AppendUvarint(key, uint64(len(name)))
	return append(key, name...)
}

func groupKeyPrefix(room string) []byte {
	return appendSegment([]byte(groupPrefix), room)
}

func privateKeyPrefix(userA, userB string) []byte {
	a, b := conversationKey(userA, userB)
	return appendSegment(appendSegment([]byte(pmPrefix), a), b)
}

func withSeq(prefix []byte, seq uint64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func (s *BadgerStore) nextSeq() (uint64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return n + 1, nil
}

func (s *BadgerStore) put(key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, b)
	})
}

func (s *BadgerStore) AppendGroup(ctx context.Context, msg NewGroupMessage) (GroupMessage, error) {
	prefix := groupKeyPrefix(msg.Room)
	unlock := s.locks.Lock(string(prefix))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return GroupMessage{}, err
	}

	seq, err := s.nextSeq()
	if err != nil {
		return GroupMessage{}, err
	}

	m := GroupMessage{
		Id:     uuid.New(),
		Seq:    seq,
		Sender: msg.Sender,
		Room:   msg.Room,
		Body:   msg.Body,
		SentAt: s.clock.Now(),
	}

	if err := s.put(withSeq(prefix, seq), m); err != nil {
		return GroupMessage{}, fmt.Errorf("store group message: %w", err)
	}

	return m, nil
}

func (s *BadgerStore) AppendPrivate(ctx context.Context, msg NewPrivateMessage) (PrivateMessage, error) {
	prefix := privateKeyPrefix(msg.Sender, msg.Recipient)
	unlock := s.locks.Lock(string(prefix))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return PrivateMessage{}, err
	}

	seq, err := s.nextSeq()
	if err != nil {
		return PrivateMessage{}, err
	}

	m := PrivateMessage{
		Id:        uuid.New(),
		Seq:       seq,
		Sender:    msg.Sender,
		Recipient: msg.Recipient,
		Body:      msg.Body,
		SentAt:    s.clock.Now(),
	}

	if err := s.put(withSeq(prefix, seq), m); err != nil {
		return PrivateMessage{}, fmt.Errorf("store private message: %w", err)
	}

	return m, nil
}

// scan decodes up to limit values under prefix in key order.
func scan[T any](db *badger.DB, prefix []byte, limit int) ([]T, error) {
	out := make([]T, 0)
	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var v T
			if err := it.Item().Value(func(b []byte) error {
				return json.Unmarshal(b, &v)
			}); err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})

	return out, err
}

func (s *BadgerStore) QueryGroup(ctx context.Context, room string, limit int) ([]GroupMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scan[GroupMessage](s.db, groupKeyPrefix(room), normalizeLimit(limit))
}

func (s *BadgerStore) QueryPrivate(ctx context.Context, userA, userB string, limit int) ([]PrivateMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scan[PrivateMessage](s.db, privateKeyPrefix(userA, userB), normalizeLimit(limit))
}

func (s *BadgerStore) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	a := Account{
		Username:     params.Username,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		PasswordHash: params.PasswordHash,
		CreatedAt:    s.clock.Now(),
	}

	b, err := json.Marshal(a)
	if err != nil {
		return Account{}, err
	}

	key := []byte(acctPrefix + params.Username)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateAccount
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, b)
	})
	if errors.Is(err, badger.ErrConflict) {
		return Account{}, ErrDuplicateAccount
	}
	if err != nil {
		return Account{}, err
	}

	return a, nil
}

func (s *BadgerStore) GetAccount(ctx context.Context, username string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	var a Account
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(acctPrefix + username))
		if err != nil {
			return err
		}
		return item.Value(func(b []byte) error {
			return json.Unmarshal(b, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Account{}, ErrNotFound
	}

	return a, err
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}
