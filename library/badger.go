package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "doc:"

// BadgerGateway keeps one key per document in a Badger database. Saves of
// several documents share one read-write transaction.
type BadgerGateway struct {
	db *badger.DB
}

// NewBadgerGateway opens the database at dir. An empty dir runs in memory.
func NewBadgerGateway(dir string) (*BadgerGateway, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerGateway{db: db}, nil
}

func badgerKey(c Collection) []byte { return []byte(badgerKeyPrefix + string(c)) }

func (g *BadgerGateway) Load(ctx context.Context, c Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var body []byte
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(c))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c, err)
	}
	return body, nil
}

func (g *BadgerGateway) Save(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		for _, d := range docs {
			if err := txn.Set(badgerKey(d.Collection), d.Body); err != nil {
				return fmt.Errorf("set %s: %w", d.Collection, err)
			}
		}
		return nil
	})
}

func (g *BadgerGateway) Close() error { return g.db.Close() }
