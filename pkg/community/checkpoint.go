package community

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// checkpointTTL expires stale marks so interrupted epochs do not accumulate
// forever.
const checkpointTTL = 7 * 24 * time.Hour

// Checkpoint records which community pairs a bridge pass has already
// evaluated, keyed by graph epoch, so an interrupted run resumes instead of
// re-querying the oracle for finished pairs.
type Checkpoint struct {
	db *badger.DB
}

// OpenCheckpoint opens the checkpoint database at path. An empty path opens
// an in-memory database, useful for tests and single-shot runs.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// MarkProcessed records that the pair was evaluated during the epoch.
func (c *Checkpoint) MarkProcessed(epoch, pairKey string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(checkpointKey(epoch, pairKey), nil).WithTTL(checkpointTTL)
		return txn.SetEntry(entry)
	})
}

// IsProcessed reports whether the pair was already evaluated during the
// epoch.
func (c *Checkpoint) IsProcessed(epoch, pairKey string) (bool, error) {
	var found bool
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(checkpointKey(epoch, pairKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Close releases the underlying database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

func checkpointKey(epoch, pairKey string) []byte {
	return []byte("bridge/" + epoch + "/" + pairKey)
}
