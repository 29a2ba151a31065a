package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultFileNames are the document file names the desktop application used.
var DefaultFileNames = map[Collection]string{
	UsersCollection: "users.json",
	BooksCollection: "books.json",
	LoansCollection: "borrowed_books.json",
}

// FileGateway stores each document as a JSON file in one directory.
type FileGateway struct {
	dir   string
	names map[Collection]string
}

// NewFileGateway creates dir if needed. Documents use DefaultFileNames.
func NewFileGateway(dir string) (*FileGateway, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileGateway{dir: dir, names: DefaultFileNames}, nil
}

// Path returns the file backing c.
func (g *FileGateway) Path(c Collection) string {
	name, ok := g.names[c]
	if !ok {
		name = string(c) + ".json"
	}
	return filepath.Join(g.dir, name)
}

func (g *FileGateway) Load(ctx context.Context, c Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(g.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", g.Path(c), err)
	}
	return body, nil
}

// Save writes every document to a temp file first and renames them into place
// only once all writes succeeded.
func (g *FileGateway) Save(ctx context.Context, docs ...Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := make([]string, 0, len(docs))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, d := range docs {
		tmp, err := writeTemp(g.dir, g.Path(d.Collection), d.Body)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	// Renames are not atomic as a group. The loans file goes first, so a
	// failure on a later rename leaves the documents disagreeing in a way
	// CheckConsistency reports, but never drops a loan record.
	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return docs[order[a]].Collection == LoansCollection && docs[order[b]].Collection != LoansCollection
	})
	for _, i := range order {
		d := docs[i]
		if err := os.Rename(staged[i], g.Path(d.Collection)); err != nil {
			cleanup()
			return fmt.Errorf("replace %s: %w", g.Path(d.Collection), err)
		}
	}
	return nil
}

func writeTemp(dir, target string, body []byte) (string, error) {
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", target, err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return f.Name(), nil
}

func (g *FileGateway) Close() error { return nil }
