package library

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultFine is what one application of a fine adds to a loan.
const DefaultFine = 5

// Ledger holds the active loans and keeps them in step with the catalog.
type Ledger struct {
	loans     Loans
	catalog   *Catalog
	directory *Directory
	reserved  map[int]bool
}

func NewLedger(loans Loans, catalog *Catalog, directory *Directory) *Ledger {
	if loans == nil {
		loans = Loans{}
	}
	return &Ledger{loans: loans, catalog: catalog, directory: directory}
}

// Loans exposes the working copy for saving.
func (l *Ledger) Loans() Loans { return l.loans }

// reserveIDs keeps ids held by records outside the working copy from being reused.
func (l *Ledger) reserveIDs(ids ...int) {
	if l.reserved == nil {
		l.reserved = make(map[int]bool, len(ids))
	}
	for _, id := range ids {
		l.reserved[id] = true
	}
}

// Status is Overdue once asOf is past the due date. A loan without a due date
// is never overdue.
func Status(loan Loan, asOf Date) LoanStatus {
	if !loan.DueDate.IsZero() && asOf.After(loan.DueDate) {
		return StatusOverdue
	}
	return StatusActive
}

// nextLoanID keeps the count+1 numbering, counting reserved ids, but never
// reuses a live or reserved id.
func (l *Ledger) nextLoanID() int {
	id := len(l.loans) + len(l.reserved) + 1
	if _, taken := l.loans[id]; !taken && !l.reserved[id] {
		return id
	}
	for existing := range l.loans {
		if existing >= id {
			id = existing + 1
		}
	}
	for existing := range l.reserved {
		if existing >= id {
			id = existing + 1
		}
	}
	return id
}

// Issue lends one copy of bookID to studentID until dueDate.
func (l *Ledger) Issue(bookID int, studentID, dueDate string, today Date) (int, error) {
	due, err := ParseDate(dueDate)
	if err != nil {
		return 0, err
	}
	if !l.directory.IsStudent(studentID) {
		return 0, ErrStudentNotFound.WithMessagef("student %q not found", studentID)
	}
	if err := l.catalog.ReserveCopy(bookID); err != nil {
		return 0, err
	}

	id := l.nextLoanID()
	l.loans[id] = Loan{
		ID:        id,
		BookID:    bookID,
		Student:   studentID,
		IssueDate: today,
		DueDate:   due,
	}
	return id, nil
}

// Return ends a loan and puts its copy back on the shelf.
func (l *Ledger) Return(loanID int) (Loan, error) {
	loan, ok := l.loans[loanID]
	if !ok {
		return Loan{}, ErrLoanNotFound.WithMessagef("loan %d not found", loanID)
	}
	if err := l.catalog.ReleaseCopy(loan.BookID); err != nil {
		return Loan{}, err
	}
	delete(l.loans, loanID)
	return loan, nil
}

// ApplyFine adds amount to a loan's fine and returns the new total. Every
// call adds again.
func (l *Ledger) ApplyFine(loanID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidInput.WithMessagef("fine amount must be greater than 0")
	}
	loan, ok := l.loans[loanID]
	if !ok {
		return 0, ErrLoanNotFound.WithMessagef("loan %d not found", loanID)
	}
	loan.Fine += amount
	l.loans[loanID] = loan
	return loan.Fine, nil
}

func (l *Ledger) view(loan Loan, asOf Date) LoanView {
	title := fmt.Sprintf("book #%d", loan.BookID)
	if b, ok := l.catalog.Get(loan.BookID); ok {
		title = b.Title
	}
	return LoanView{
		Loan:               loan,
		LoanID:             loan.ID,
		StudentDisplayName: l.directory.DisplayName(loan.Student),
		BookTitle:          title,
		Status:             Status(loan, asOf),
	}
}

func (l *Ledger) sorted() []Loan {
	out := make([]Loan, 0, len(l.loans))
	for _, loan := range l.loans {
		out = append(out, loan)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListForStudent returns the loans held by one student.
func (l *Ledger) ListForStudent(studentID string, asOf Date) []LoanView {
	var out []LoanView
	for _, loan := range l.sorted() {
		if loan.Student == studentID {
			out = append(out, l.view(loan, asOf))
		}
	}
	return out
}

// ListAll returns every loan, optionally filtered by a case-insensitive match
// on the student's display name or identifier.
func (l *Ledger) ListAll(query string, asOf Date) []LoanView {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []LoanView
	for _, loan := range l.sorted() {
		v := l.view(loan, asOf)
		if q != "" && !strings.Contains(strings.ToLower(v.StudentDisplayName), q) && !strings.Contains(strings.ToLower(loan.Student), q) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Stats counts issued and overdue loans as of asOf.
func (l *Ledger) Stats(asOf Date) Stats {
	var s Stats
	for _, loan := range l.loans {
		s.Issued++
		if Status(loan, asOf) == StatusOverdue {
			s.Overdue++
		}
	}
	return s
}
