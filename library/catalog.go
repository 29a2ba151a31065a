package library

import (
	"sort"
	"strconv"
	"strings"
)

// Catalog owns the books document for the duration of one operation and
// guards its copy counters.
type Catalog struct {
	books    Books
	reserved []int
}

func NewCatalog(books Books) *Catalog {
	if books == nil {
		books = Books{}
	}
	return &Catalog{books: books}
}

// Books exposes the working copy for saving.
func (c *Catalog) Books() Books { return c.books }

// ParseCopies reads a copy count typed by a user.
func ParseCopies(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrInvalidInput.WithMessagef("number of copies must be a whole number, got %q", text)
	}
	return n, nil
}

// reserveIDs keeps ids held by records outside the working copy from being reused.
func (c *Catalog) reserveIDs(ids ...int) {
	c.reserved = append(c.reserved, ids...)
}

// AddBook validates and stores a new record under the next free id.
func (c *Catalog) AddBook(title, author, isbn string, copies int) (int, error) {
	title, author, isbn = strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(isbn)
	switch {
	case title == "":
		return 0, ErrInvalidInput.WithMessagef("title is required")
	case author == "":
		return 0, ErrInvalidInput.WithMessagef("author is required")
	case isbn == "":
		return 0, ErrInvalidInput.WithMessagef("isbn is required")
	case copies <= 0:
		return 0, ErrInvalidInput.WithMessagef("number of copies must be greater than 0")
	}

	id := 1
	for existing := range c.books {
		if existing >= id {
			id = existing + 1
		}
	}
	for _, existing := range c.reserved {
		if existing >= id {
			id = existing + 1
		}
	}

	c.books[id] = Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     copies,
		AvailableCopies: copies,
	}
	return id, nil
}

func (c *Catalog) Get(id int) (Book, bool) {
	b, ok := c.books[id]
	return b, ok
}

// ListAll returns every book in id order.
func (c *Catalog) ListAll() []Book {
	out := make([]Book, 0, len(c.books))
	for _, b := range c.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListAvailable returns books with at least one copy on the shelf, optionally
// filtered by a case-insensitive title or author substring.
func (c *Catalog) ListAvailable(query string) []Book {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Book
	for _, b := range c.ListAll() {
		if b.AvailableCopies <= 0 {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Author), q) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// SearchAvailableByTitle is the issue form's book picker: available books
// whose title contains query. An empty query matches nothing.
func (c *Catalog) SearchAvailableByTitle(query string) []Book {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Book
	for _, b := range c.ListAll() {
		if b.AvailableCopies > 0 && strings.Contains(strings.ToLower(b.Title), q) {
			out = append(out, b)
		}
	}
	return out
}

// ReserveCopy takes one copy off the shelf.
func (c *Catalog) ReserveCopy(id int) error {
	b, ok := c.books[id]
	if !ok {
		return ErrBookNotFound.WithMessagef("book %d not found", id)
	}
	if b.AvailableCopies <= 0 {
		return ErrBookUnavailable.WithMessagef("no copies of %q are available", b.Title)
	}
	b.AvailableCopies--
	c.books[id] = b
	return nil
}

// ReleaseCopy puts one copy back. Callers pair it with an earlier
// ReserveCopy, so overflowing the total means the documents disagree.
func (c *Catalog) ReleaseCopy(id int) error {
	b, ok := c.books[id]
	if !ok {
		return ErrInconsistent.WithMessagef("loan references missing book %d", id)
	}
	if b.AvailableCopies >= b.TotalCopies {
		return ErrInconsistent.WithMessagef("book %d already has all %d copies on the shelf", id, b.TotalCopies)
	}
	b.AvailableCopies++
	c.books[id] = b
	return nil
}
