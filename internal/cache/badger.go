package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const badgerPrefix = "verdict/"

// Badger keeps verdicts in a badger key-value store
type Badger struct {
	db       *badger.DB
	inMemory bool
}

// OpenBadger opens a store under dir; an empty dir keeps it in memory
func OpenBadger(dir string, log logrus.FieldLogger) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	if log != nil {
		opts = opts.WithLogger(log)
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &Badger{db: db, inMemory: dir == ""}, nil
}

func badgerKey(key uint64) []byte {
	return []byte(badgerPrefix + keyString(key))
}

func (c *Badger) Get(key uint64) (Entry, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cached verdict: %w", err)
	}
	return e, true, nil
}

func (c *Badger) Put(key uint64, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(key), data)
	})
}

// Persist syncs the value log; writes are already durable per transaction
func (c *Badger) Persist() error {
	if c.inMemory {
		return nil
	}
	return c.db.Sync()
}

func (c *Badger) Close() error {
	return c.db.Close()
}
