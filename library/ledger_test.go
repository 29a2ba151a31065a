package library

import (
	"errors"
	"testing"
)

func newLedger(t *testing.T, books Books, loans Loans) *Ledger {
	t.Helper()
	users := Users{}
	for id, u := range testUsers {
		u.ID = id
		users[id] = u
	}
	dir := NewDirectory(users)
	return NewLedger(loans, NewCatalog(books), dir)
}

func TestLoanIDSkipsTakenSlot(t *testing.T) {
	due := mustDate(t, "2025-04-01")
	books := Books{1: {ID: 1, Title: "T", TotalCopies: 5, AvailableCopies: 3}}
	// Loan 1 was returned earlier, so count+1 lands on the live loan 2.
	loans := Loans{
		2: {ID: 2, BookID: 1, Student: "student1", DueDate: due},
		3: {ID: 3, BookID: 1, Student: "student2", DueDate: due},
	}
	l := newLedger(t, books, loans)

	id, err := l.Issue(1, "student1", "2025-04-01", DateOf(fixedNow))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id != 4 {
		t.Fatalf("want id 4, got %d", id)
	}
	if len(l.Loans()) != 3 {
		t.Fatalf("existing loan overwritten: %v", l.Loans())
	}
}

func TestLoanIDCountPlusOne(t *testing.T) {
	books := Books{1: {ID: 1, Title: "T", TotalCopies: 5, AvailableCopies: 4}}
	loans := Loans{1: {ID: 1, BookID: 1, Student: "student1"}}
	l := newLedger(t, books, loans)

	id, err := l.Issue(1, "student2", "2025-04-01", DateOf(fixedNow))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id != 2 {
		t.Fatalf("want id 2, got %d", id)
	}
}

func TestStatusBoundary(t *testing.T) {
	loan := Loan{DueDate: mustDate(t, "2025-03-10")}
	if got := Status(loan, mustDate(t, "2025-03-10")); got != StatusActive {
		t.Fatalf("due day: %s", got)
	}
	if got := Status(loan, mustDate(t, "2025-03-11")); got != StatusOverdue {
		t.Fatalf("day after: %s", got)
	}
}

func TestStatusWithoutDueDateIsActive(t *testing.T) {
	if got := Status(Loan{}, mustDate(t, "2025-03-11")); got != StatusActive {
		t.Fatalf("no due date: %s", got)
	}
}

func TestReservedLoanIDsAreSkipped(t *testing.T) {
	books := Books{1: {ID: 1, Title: "T", TotalCopies: 5, AvailableCopies: 4}}
	loans := Loans{1: {ID: 1, BookID: 1, Student: "student1"}}
	l := newLedger(t, books, loans)
	l.reserveIDs(3)

	id, err := l.Issue(1, "student2", "2025-04-01", DateOf(fixedNow))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if id != 4 {
		t.Fatalf("want id 4, got %d", id)
	}
}

func TestApplyFineRejectsNonPositiveAmount(t *testing.T) {
	l := newLedger(t, Books{}, Loans{1: {ID: 1}})
	if _, err := l.ApplyFine(1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want InvalidInput, got %v", err)
	}
	if l.Loans()[1].Fine != 0 {
		t.Fatalf("fine changed")
	}
}

func TestReturnWithOverflowingBookIsInconsistent(t *testing.T) {
	books := Books{1: {ID: 1, Title: "T", TotalCopies: 1, AvailableCopies: 1}}
	loans := Loans{1: {ID: 1, BookID: 1, Student: "student1"}}
	l := newLedger(t, books, loans)

	if _, err := l.Return(1); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("want Inconsistent, got %v", err)
	}
	if _, ok := l.Loans()[1]; !ok {
		t.Fatalf("loan removed despite failure")
	}
}

func TestListAllFallsBackForMissingNames(t *testing.T) {
	loans := Loans{1: {ID: 1, BookID: 9, Student: "gone"}}
	l := newLedger(t, Books{}, loans)

	views := l.ListAll("", DateOf(fixedNow))
	if len(views) != 1 {
		t.Fatalf("views = %+v", views)
	}
	if views[0].BookTitle != "book #9" || views[0].StudentDisplayName != "gone" {
		t.Fatalf("view = %+v", views[0])
	}
}

func TestVerifyReportsEveryProblem(t *testing.T) {
	books := Books{
		1: {ID: 1, TotalCopies: 2, AvailableCopies: 3},
		2: {ID: 2, TotalCopies: 2, AvailableCopies: 2},
	}
	loans := Loans{
		1: {ID: 1, BookID: 2},
		2: {ID: 2, BookID: 7},
	}
	v := Verify(books, loans)
	if len(v) != 4 {
		t.Fatalf("violations = %v", v)
	}
	if v[0].LoanID != 2 {
		t.Fatalf("first violation should be the dangling loan: %v", v[0])
	}
	if v[0].String() != "loan 2: references missing book 7" {
		t.Fatalf("message = %q", v[0].String())
	}
}
