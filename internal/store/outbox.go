package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
)

// outbox is a local durable write-ahead log for queued writes: every save
// is appended here before being flushed to MySQL/Mongo, so a crash between
// enqueue and flush does not silently lose the write. Grounded on
// EntityStorage's badger.Open/Update/View usage.
type outbox struct {
	db   *badger.DB
	next uint64
}

func newOutbox(dataDir string) (*outbox, error) {
	opts := badger.DefaultOptions(filepath.Join(dataDir, "store-outbox"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open outbox: %w", err)
	}
	o := &outbox{db: db}
	if err := o.seedNext(); err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

// seedNext resumes the sequence counter past whatever is already on disk,
// so a restart with unflushed entries never reuses a key still pending.
func (o *outbox) seedNext() error {
	return o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Reverse: true})
		defer it.Close()
		prefix := []byte("write:")
		seekFrom := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekFrom); it.ValidForPrefix(prefix); it.Next() {
			var seq uint64
			if _, err := fmt.Sscanf(string(it.Item().Key()), "write:%020d", &seq); err == nil {
				o.next = seq
			}
			break
		}
		return nil
	})
}

func outboxKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("write:%020d", seq))
}

// append durably records w and returns the key it was stored under, so a
// successful flush can delete exactly that entry.
func (o *outbox) append(w pendingWrite) ([]byte, error) {
	seq := atomic.AddUint64(&o.next, 1)
	key := outboxKey(seq)
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("store: encode outbox entry: %w", err)
	}
	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return nil, fmt.Errorf("store: append outbox: %w", err)
	}
	return key, nil
}

// remove drops a flushed entry.
func (o *outbox) remove(key []byte) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// pending replays every entry still in the outbox, oldest first, for the
// worker to re-drive after a restart that interrupted a flush.
func (o *outbox) pending() ([]pendingWrite, [][]byte, error) {
	var writes []pendingWrite
	var keys [][]byte
	err := o.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("write:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte{}, item.Key()...)
			var w pendingWrite
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &w)
			})
			if err != nil {
				continue
			}
			writes = append(writes, w)
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("store: replay outbox: %w", err)
	}
	return writes, keys, nil
}

func (o *outbox) close() error {
	return o.db.Close()
}
