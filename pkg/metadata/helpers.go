package metadata

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/metadata/status"
	"go.uber.org/zap"
)

const (
	conflictRetries = 10
	conflictDelay   = 10 * time.Millisecond
)

// badgerLogger routes badger logs to zap
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}

func (s *Store) view(fn func(*badger.Txn) error) error {
	if s.db == nil {
		return status.ErrNotInitialized
	}
	return s.db.View(fn)
}

// update runs a read-write transaction, retrying when badger detects a conflict at commit time
func (s *Store) update(fn func(*badger.Txn) error) error {
	if s.db == nil {
		return status.ErrNotInitialized
	}
	return backoff.Retry(func() error {
		err := s.db.Update(fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, badger.ErrConflict) {
			s.logger.Debug("metadata transaction conflict, retrying")
			return err // retry
		}
		return backoff.Permanent(err)
	},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(conflictDelay), conflictRetries),
	)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func getJSON(txn *badger.Txn, key []byte, target interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return status.ErrNotFound
		}
		return err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if err := jsoniter.Unmarshal(data, target); err != nil {
		return status.ErrCorrupted.WrapMessage("key %q", string(key)).Wrap(err)
	}
	return nil
}

func setJSON(txn *badger.Txn, key []byte, value interface{}) error {
	data, err := jsoniter.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal failed: %w", err)
	}
	return txn.Set(key, data)
}

// scan iterates over all keys with some prefix, in key order
func scan(txn *badger.Txn, prefix []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			return err
		}
	}
	return nil
}

// scanKeys collects the keys with some prefix
func scanKeys(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}

func decode(key, value []byte, target interface{}) error {
	if err := jsoniter.Unmarshal(value, target); err != nil {
		return status.ErrCorrupted.WrapMessage("key %q", string(key)).Wrap(err)
	}
	return nil
}
