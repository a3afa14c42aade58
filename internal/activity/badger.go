package activity

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// maxTxnRetries bounds retries of a read-modify-write that lost to a
// concurrent transaction.
const maxTxnRetries = 5

// BadgerCounter implements Counter on an embedded Badger database using its
// native per-entry TTL.
type BadgerCounter struct {
	db *badger.DB
}

// OpenBadgerCounter opens (or creates) a Badger database at path. An empty
// path opens an in-memory database.
func OpenBadgerCounter(path string, logger *slog.Logger) (*BadgerCounter, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{logger: logger})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerCounter{db: db}, nil
}

// Incr implements Counter. An existing entry keeps its expiry.
func (b *BadgerCounter) Incr(_ context.Context, key string, by int64) (int64, error) {
	var n int64
	err := b.update(func(txn *badger.Txn) error {
		current, expiresAt, err := readCounter(txn, key)
		if err != nil {
			return err
		}
		n = current + by
		e := badger.NewEntry([]byte(key), encodeCounter(n))
		e.ExpiresAt = expiresAt
		return txn.SetEntry(e)
	})
	if err != nil {
		return 0, fmt.Errorf("badger incr %s: %w", key, err)
	}
	return n, nil
}

// Expire implements Counter. Expiring a missing key is a no-op.
func (b *BadgerCounter) Expire(_ context.Context, key string, ttl time.Duration) error {
	err := b.update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(key), value).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("badger expire %s: %w", key, err)
	}
	return nil
}

// IncrWithTTL implements Counter. The new value and expiry land in one
// transaction.
func (b *BadgerCounter) IncrWithTTL(_ context.Context, key string, by int64, ttl time.Duration) (int64, error) {
	var n int64
	err := b.update(func(txn *badger.Txn) error {
		current, _, err := readCounter(txn, key)
		if err != nil {
			return err
		}
		n = current + by
		return txn.SetEntry(badger.NewEntry([]byte(key), encodeCounter(n)).WithTTL(ttl))
	})
	if err != nil {
		return 0, fmt.Errorf("badger incr %s: %w", key, err)
	}
	return n, nil
}

// Get implements Counter.
func (b *BadgerCounter) Get(_ context.Context, key string) (int64, error) {
	var n int64
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		n, _, err = readCounter(txn, key)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("badger get %s: %w", key, err)
	}
	return n, nil
}

// ExpiresAt returns the unix expiry of key, 0 when it never expires or is missing.
func (b *BadgerCounter) ExpiresAt(key string) (uint64, error) {
	var at uint64
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		_, at, err = readCounter(txn, key)
		return err
	})
	return at, err
}

// Close closes the database.
func (b *BadgerCounter) Close() error {
	return b.db.Close()
}

func (b *BadgerCounter) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxTxnRetries {
		err = b.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func readCounter(txn *badger.Txn, key string) (value int64, expiresAt uint64, err error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	err = item.Value(func(v []byte) error {
		if len(v) != 8 {
			return fmt.Errorf("corrupt counter value of %d bytes", len(v))
		}
		value = int64(binary.BigEndian.Uint64(v))
		return nil
	})
	return value, item.ExpiresAt(), err
}

func encodeCounter(n int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// badgerLogger routes Badger's logging through slog at debug level, keeping
// warnings and errors visible.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l badgerLogger) log(level slog.Level, format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "badger")
}
