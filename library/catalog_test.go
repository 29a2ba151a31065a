package library

import (
	"errors"
	"testing"
)

func TestAddBookAssignsMaxPlusOne(t *testing.T) {
	c := NewCatalog(Books{
		2: {ID: 2, Title: "B", TotalCopies: 1, AvailableCopies: 1},
		9: {ID: 9, Title: "C", TotalCopies: 1, AvailableCopies: 1},
	})
	id, err := c.AddBook("  Dune ", "Frank Herbert", "978-0441013593", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id != 10 {
		t.Fatalf("want id 10, got %d", id)
	}
	b, _ := c.Get(id)
	if b.Title != "Dune" || b.TotalCopies != 2 || b.AvailableCopies != 2 {
		t.Fatalf("book = %+v", b)
	}
}

func TestAddBookValidation(t *testing.T) {
	tests := []struct {
		name                string
		title, author, isbn string
		copies              int
	}{
		{"empty title", "", "A", "I", 1},
		{"blank author", "T", "   ", "I", 1},
		{"empty isbn", "T", "A", "", 1},
		{"zero copies", "T", "A", "I", 0},
		{"negative copies", "T", "A", "I", -2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCatalog(nil)
			if _, err := c.AddBook(tc.title, tc.author, tc.isbn, tc.copies); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("want InvalidInput, got %v", err)
			}
			if len(c.Books()) != 0 {
				t.Fatalf("book stored despite error")
			}
		})
	}
}

func TestParseCopies(t *testing.T) {
	if n, err := ParseCopies(" 4 "); err != nil || n != 4 {
		t.Fatalf("got %d, %v", n, err)
	}
	for _, in := range []string{"", "three", "2.5"} {
		if _, err := ParseCopies(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%q: want InvalidInput, got %v", in, err)
		}
	}
}

func TestListAvailableFilters(t *testing.T) {
	c := NewCatalog(Books{
		1: {ID: 1, Title: "Python Programming", Author: "John Smith", TotalCopies: 3, AvailableCopies: 3},
		2: {ID: 2, Title: "Data Science Basics", Author: "Mary Johnson", TotalCopies: 2, AvailableCopies: 0},
		3: {ID: 3, Title: "Machine Learning", Author: "Bob Wilson", TotalCopies: 4, AvailableCopies: 1},
	})

	if got := c.ListAvailable(""); len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("all available = %+v", got)
	}
	if got := c.ListAvailable("WILSON"); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("author match = %+v", got)
	}
	if got := c.ListAvailable("science"); len(got) != 0 {
		t.Fatalf("unavailable book listed: %+v", got)
	}
	if got := c.ListAll(); len(got) != 3 {
		t.Fatalf("list all = %+v", got)
	}
	// The issue picker matches titles only.
	if got := c.SearchAvailableByTitle("smith"); len(got) != 0 {
		t.Fatalf("title search matched an author: %+v", got)
	}
}

func TestReserveAndRelease(t *testing.T) {
	c := NewCatalog(Books{1: {ID: 1, Title: "T", TotalCopies: 1, AvailableCopies: 1}})

	if err := c.ReserveCopy(1); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := c.ReserveCopy(1); !errors.Is(err, ErrBookUnavailable) {
		t.Fatalf("want BookUnavailable, got %v", err)
	}
	if err := c.ReserveCopy(2); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("want BookNotFound, got %v", err)
	}
	if err := c.ReleaseCopy(1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := c.ReleaseCopy(1); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("want Inconsistent, got %v", err)
	}
	if b, _ := c.Get(1); b.AvailableCopies != 1 {
		t.Fatalf("available = %d", b.AvailableCopies)
	}
}
