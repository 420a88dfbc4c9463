package learn

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

const (
	keyBest             = "best"
	keyCheckpointPrefix = "checkpoint/"
)

// Checkpoint is one saved network and the loss it was judged by.
type Checkpoint struct {
	Index        int       `json:"index"`
	Dir          string    `json:"dir"`
	Epoch        int64     `json:"epoch"`
	TotalDone    int64     `json:"total_done"`
	Loss         float64   `json:"loss"`
	LearningRate float64   `json:"learning_rate"`
	Accepted     bool      `json:"accepted"`
	Time         time.Time `json:"time"`
}

// Ledger persists checkpoints so training can resume from the best one.
type Ledger struct {
	db *badger.DB
}

func OpenLedger(dir string) (*Ledger, error) {
	var opts = badger.DefaultOptions(dir)
	opts.Logger = nil
	var db, err = badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open ledger")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record stores c, and makes it the best checkpoint when accepted.
func (l *Ledger) Record(c Checkpoint) error {
	if c.Time.IsZero() {
		c.Time = time.Now()
	}
	var data, err = json.Marshal(c)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		var key = fmt.Sprintf("%v%08d", keyCheckpointPrefix, c.Index)
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		if c.Accepted {
			return txn.Set([]byte(keyBest), data)
		}
		return nil
	})
}

// Best returns the last accepted checkpoint.
func (l *Ledger) Best() (Checkpoint, bool, error) {
	var result Checkpoint
	var found bool
	var err = l.db.View(func(txn *badger.Txn) error {
		var item, err = txn.Get([]byte(keyBest))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})
	return result, found, err
}

// Checkpoints returns all checkpoints in order.
func (l *Ledger) Checkpoints() ([]Checkpoint, error) {
	var result []Checkpoint
	var err = l.db.View(func(txn *badger.Txn) error {
		var it = txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		var prefix = []byte(keyCheckpointPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var c Checkpoint
			var err = it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			})
			if err != nil {
				return err
			}
			result = append(result, c)
		}
		return nil
	})
	return result, err
}
