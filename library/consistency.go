package library

import (
	"fmt"
	"sort"
)

// Violation describes one place where the books and loans documents disagree.
type Violation struct {
	BookID  int    `json:"book_id,omitempty"`
	LoanID  int    `json:"loan_id,omitempty"`
	Problem string `json:"problem"`
}

func (v Violation) String() string {
	switch {
	case v.LoanID != 0:
		return fmt.Sprintf("loan %d: %s", v.LoanID, v.Problem)
	case v.BookID != 0:
		return fmt.Sprintf("book %d: %s", v.BookID, v.Problem)
	default:
		return v.Problem
	}
}

// Verify checks the copy-count invariants: every book keeps
// 0 <= available <= total, every loan points at a real book, and each book's
// issued copies equal the loans referencing it.
func Verify(books Books, loans Loans) []Violation {
	var out []Violation

	perBook := make(map[int]int, len(books))
	loanIDs := make([]int, 0, len(loans))
	for id := range loans {
		loanIDs = append(loanIDs, id)
	}
	sort.Ints(loanIDs)
	for _, id := range loanIDs {
		loan := loans[id]
		if _, ok := books[loan.BookID]; !ok {
			out = append(out, Violation{LoanID: id, Problem: fmt.Sprintf("references missing book %d", loan.BookID)})
			continue
		}
		perBook[loan.BookID]++
	}

	bookIDs := make([]int, 0, len(books))
	for id := range books {
		bookIDs = append(bookIDs, id)
	}
	sort.Ints(bookIDs)
	for _, id := range bookIDs {
		b := books[id]
		if b.AvailableCopies < 0 || b.AvailableCopies > b.TotalCopies {
			out = append(out, Violation{BookID: id, Problem: fmt.Sprintf("available copies %d outside 0..%d", b.AvailableCopies, b.TotalCopies)})
		}
		if b.OnLoan() != perBook[id] {
			out = append(out, Violation{BookID: id, Problem: fmt.Sprintf("%d copies issued but %d loans recorded", b.OnLoan(), perBook[id])})
		}
	}
	return out
}
