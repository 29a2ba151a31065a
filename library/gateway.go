package library

import (
	"context"
	"sync"
)

// Collection names one of the three persisted documents.
type Collection string

const (
	UsersCollection Collection = "users"
	BooksCollection Collection = "books"
	LoansCollection Collection = "loans"
)

// Collections lists every document the service persists.
var Collections = []Collection{UsersCollection, BooksCollection, LoansCollection}

// Document is one collection encoded as a whole.
type Document struct {
	Collection Collection
	Body       []byte
}

// Gateway is the only I/O boundary of the service. Documents are always read
// and written whole.
type Gateway interface {
	// Load returns the stored body, or nil and no error when the document does
	// not exist yet.
	Load(ctx context.Context, c Collection) ([]byte, error)
	// Save replaces every given document. Implementations write a batch as
	// atomically as their medium allows.
	Save(ctx context.Context, docs ...Document) error
	Close() error
}

// MemoryGateway keeps documents in process memory.
type MemoryGateway struct {
	mu   sync.RWMutex
	docs map[Collection][]byte
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{docs: make(map[Collection][]byte)}
}

func (g *MemoryGateway) Load(_ context.Context, c Collection) ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	body, ok := g.docs[c]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), body...), nil
}

func (g *MemoryGateway) Save(_ context.Context, docs ...Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, d := range docs {
		g.docs[d.Collection] = append([]byte(nil), d.Body...)
	}
	return nil
}

// Put stores a raw body, bypassing the codec. Handy for seeding fixtures.
func (g *MemoryGateway) Put(c Collection, body []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.docs[c] = append([]byte(nil), body...)
}

func (g *MemoryGateway) Close() error { return nil }
