package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// searchLimit caps the interactive pickers (issue-form book search and
// student search).
const searchLimit = 5

// LibraryManager is the circulation service every front end talks to. Each
// call re-reads the documents it needs from the gateway; nothing about the
// collections is cached between calls.
type LibraryManager struct {
	gw       Gateway
	sessions *SessionStore
	log      *slog.Logger

	now        func() time.Time
	fine       int
	loanPeriod time.Duration

	// mu serializes mutations. Reads take the shared side so they never see
	// a document mid-save.
	mu sync.RWMutex
}

type Option func(*LibraryManager)

// WithClock replaces time.Now. Today is the calendar date of the clock reading.
func WithClock(now func() time.Time) Option {
	return func(lm *LibraryManager) { lm.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(lm *LibraryManager) { lm.log = log }
}

// WithFineIncrement sets what one LoanApplyFine adds. Non-positive values are ignored.
func WithFineIncrement(amount int) Option {
	return func(lm *LibraryManager) {
		if amount > 0 {
			lm.fine = amount
		}
	}
}

// WithLoanPeriod sets the distance between today and the suggested due date.
func WithLoanPeriod(d time.Duration) Option {
	return func(lm *LibraryManager) {
		if d > 0 {
			lm.loanPeriod = d
		}
	}
}

// NewLibraryManager builds the service over gw. The manager owns gw and
// closes it in Close.
func NewLibraryManager(gw Gateway, opts ...Option) *LibraryManager {
	lm := &LibraryManager{
		gw:         gw,
		sessions:   NewSessionStore(),
		log:        slog.Default(),
		now:        time.Now,
		fine:       DefaultFine,
		loanPeriod: DefaultLoanPeriod,
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm
}

// Close closes the underlying gateway.
func (lm *LibraryManager) Close() error { return lm.gw.Close() }

func (lm *LibraryManager) Today() Date { return DateOf(lm.now()) }

// DefaultDueDate is the due date the issue form suggests.
func (lm *LibraryManager) DefaultDueDate() Date {
	return DefaultDueDate(lm.Today(), lm.loanPeriod)
}

// FineIncrement is the amount LoanApplyFine adds.
func (lm *LibraryManager) FineIncrement() int { return lm.fine }

// ------------------ Snapshot helpers ------------------

// read decodes fresh working copies of the requested collections. Ones not
// requested are left empty.
func (lm *LibraryManager) read(ctx context.Context, cols ...Collection) (snapshot, error) {
	s := snapshot{users: Users{}, books: Books{}, loans: Loans{}, kept: make(map[Collection]rawEntries)}
	for _, c := range cols {
		var (
			kept rawEntries
			err  error
		)
		switch c {
		case UsersCollection:
			s.users, kept, err = loadUsers(ctx, lm.gw, lm.log)
		case BooksCollection:
			s.books, kept, err = loadBooks(ctx, lm.gw, lm.log)
		case LoansCollection:
			s.loans, kept, err = loadLoans(ctx, lm.gw, lm.log)
		default:
			err = fmt.Errorf("unknown collection %q", c)
		}
		if err != nil {
			return snapshot{}, err
		}
		if len(kept) > 0 {
			s.kept[c] = kept
		}
	}
	return s, nil
}

// stores wraps the snapshot in its stores. Ids held by kept records stay
// reserved.
func (s snapshot) stores() (*Directory, *Catalog, *Ledger) {
	dir := NewDirectory(s.users)
	cat := NewCatalog(s.books)
	cat.reserveIDs(s.kept[BooksCollection].ids()...)
	ledger := NewLedger(s.loans, cat, dir)
	ledger.reserveIDs(s.kept[LoansCollection].ids()...)
	return dir, cat, ledger
}

// commit encodes every given collection before writing any of them, so an
// encode failure leaves the stored documents untouched.
func (lm *LibraryManager) commit(ctx context.Context, s snapshot, cols ...Collection) error {
	docs := make([]Document, 0, len(cols))
	for _, c := range cols {
		var (
			doc Document
			err error
		)
		switch c {
		case UsersCollection:
			doc, err = encodeUsers(s.users, s.kept[c])
		case BooksCollection:
			doc, err = encodeBooks(s.books, s.kept[c])
		case LoansCollection:
			doc, err = encodeLoans(s.loans, s.kept[c])
		}
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if err := lm.gw.Save(ctx, docs...); err != nil {
		var coded *Error
		if errors.As(err, &coded) {
			return err
		}
		return ErrPersistenceUnavailable.WithMessagef("save documents").WithCause(err)
	}
	return nil
}

// ------------------ Sessions ------------------

// Login authenticates a user and opens a session for them.
func (lm *LibraryManager) Login(ctx context.Context, identifier, secret string) (Session, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, UsersCollection)
	if err != nil {
		return Session{}, err
	}
	id, err := NewDirectory(s.users).Authenticate(identifier, secret)
	if err != nil {
		lm.log.Info("login failed", "user", identifier)
		return Session{}, err
	}
	sess := lm.sessions.Create(id, lm.now())
	lm.log.Info("login", "user", id.ID, "role", id.Role)
	return sess, nil
}

func (lm *LibraryManager) Logout(token string) error {
	if !lm.sessions.Delete(token) {
		return ErrUnauthorized.WithMessagef("session not found")
	}
	return nil
}

// Session resolves a token issued by Login.
func (lm *LibraryManager) Session(token string) (Session, error) {
	sess, ok := lm.sessions.Get(token)
	if !ok {
		return Session{}, ErrUnauthorized.WithMessagef("session not found or expired")
	}
	return sess, nil
}

// ------------------ Catalog ------------------

// CatalogBrowse lists books that have a copy on the shelf.
func (lm *LibraryManager) CatalogBrowse(ctx context.Context, query string) ([]Book, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, BooksCollection)
	if err != nil {
		return nil, err
	}
	return NewCatalog(s.books).ListAvailable(query), nil
}

func (lm *LibraryManager) CatalogListAll(ctx context.Context) ([]Book, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, BooksCollection)
	if err != nil {
		return nil, err
	}
	return NewCatalog(s.books).ListAll(), nil
}

// CatalogSearchForIssue backs the issue form's book picker.
func (lm *LibraryManager) CatalogSearchForIssue(ctx context.Context, query string) ([]Book, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, BooksCollection)
	if err != nil {
		return nil, err
	}
	return limit(NewCatalog(s.books).SearchAvailableByTitle(query), searchLimit), nil
}

func (lm *LibraryManager) CatalogAdd(ctx context.Context, title, author, isbn string, copies int) (Book, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s, err := lm.read(ctx, BooksCollection)
	if err != nil {
		return Book{}, err
	}
	_, cat, _ := s.stores()
	id, err := cat.AddBook(title, author, isbn, copies)
	if err != nil {
		return Book{}, err
	}
	if err := lm.commit(ctx, s, BooksCollection); err != nil {
		return Book{}, err
	}
	book, _ := cat.Get(id)
	lm.log.Info("book added", "book_id", id, "title", book.Title, "copies", copies)
	return book, nil
}

// ------------------ Students ------------------

func (lm *LibraryManager) StudentSearch(ctx context.Context, query string) ([]StudentMatch, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, UsersCollection)
	if err != nil {
		return nil, err
	}
	return limit(NewDirectory(s.users).FindStudents(query), searchLimit), nil
}

// ------------------ Circulation ------------------

// LoanIssue lends one copy of bookID to studentID until dueDate (YYYY-MM-DD).
func (lm *LibraryManager) LoanIssue(ctx context.Context, studentID string, bookID int, dueDate string) (LoanView, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s, err := lm.read(ctx, UsersCollection, BooksCollection, LoansCollection)
	if err != nil {
		return LoanView{}, err
	}
	_, _, ledger := s.stores()
	today := lm.Today()
	id, err := ledger.Issue(bookID, studentID, dueDate, today)
	if err != nil {
		return LoanView{}, err
	}
	if err := lm.commit(ctx, s, BooksCollection, LoansCollection); err != nil {
		return LoanView{}, err
	}
	v := ledger.view(ledger.loans[id], today)
	lm.log.Info("loan issued", "loan_id", id, "book_id", bookID, "student", studentID, "due", v.DueDate)
	return v, nil
}

// LoanReturn ends a loan and returns what it looked like.
func (lm *LibraryManager) LoanReturn(ctx context.Context, loanID int) (Loan, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s, err := lm.read(ctx, BooksCollection, LoansCollection)
	if err != nil {
		return Loan{}, err
	}
	_, _, ledger := s.stores()
	loan, err := ledger.Return(loanID)
	if err != nil {
		return Loan{}, err
	}
	if err := lm.commit(ctx, s, BooksCollection, LoansCollection); err != nil {
		return Loan{}, err
	}
	lm.log.Info("loan returned", "loan_id", loanID, "book_id", loan.BookID, "student", loan.Student, "fine", loan.Fine)
	return loan, nil
}

// LoanApplyFine adds the configured increment to a loan's fine. Repeated
// calls keep adding.
func (lm *LibraryManager) LoanApplyFine(ctx context.Context, loanID int) (int, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	s, err := lm.read(ctx, LoansCollection)
	if err != nil {
		return 0, err
	}
	_, _, ledger := s.stores()
	total, err := ledger.ApplyFine(loanID, lm.fine)
	if err != nil {
		return 0, err
	}
	if err := lm.commit(ctx, s, LoansCollection); err != nil {
		return 0, err
	}
	lm.log.Info("fine applied", "loan_id", loanID, "amount", lm.fine, "total", total)
	return total, nil
}

func (lm *LibraryManager) LoanListMine(ctx context.Context, studentID string) ([]LoanView, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, UsersCollection, BooksCollection, LoansCollection)
	if err != nil {
		return nil, err
	}
	_, _, ledger := s.stores()
	return ledger.ListForStudent(studentID, lm.Today()), nil
}

func (lm *LibraryManager) LoanListAll(ctx context.Context, query string) ([]LoanView, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, UsersCollection, BooksCollection, LoansCollection)
	if err != nil {
		return nil, err
	}
	_, _, ledger := s.stores()
	return ledger.ListAll(query, lm.Today()), nil
}

func (lm *LibraryManager) Stats(ctx context.Context) (Stats, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, LoansCollection)
	if err != nil {
		return Stats{}, err
	}
	_, _, ledger := s.stores()
	return ledger.Stats(lm.Today()), nil
}

// ------------------ Maintenance ------------------

// Seed writes the first-run documents for every collection that does not
// exist yet and reports which ones it wrote. Existing documents, even empty
// ones, are left alone.
func (lm *LibraryManager) Seed(ctx context.Context) ([]Collection, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var docs []Document
	var seeded []Collection
	for _, c := range Collections {
		body, err := load(ctx, lm.gw, c)
		if err != nil {
			return nil, err
		}
		if body != nil {
			continue
		}

		var doc Document
		switch c {
		case UsersCollection:
			users, err := SeedUsers()
			if err != nil {
				return nil, err
			}
			doc, err = encodeUsers(users, nil)
			if err != nil {
				return nil, err
			}
		case BooksCollection:
			doc, err = encodeBooks(SeedBooks(), nil)
		case LoansCollection:
			doc, err = encodeLoans(Loans{}, nil)
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
		seeded = append(seeded, c)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if err := lm.gw.Save(ctx, docs...); err != nil {
		return nil, ErrPersistenceUnavailable.WithMessagef("save seed documents").WithCause(err)
	}
	lm.log.Info("seeded documents", "collections", seeded)
	return seeded, nil
}

// CheckConsistency reports every place the books and loans documents
// disagree, plus every stored record that could not be read. An empty result
// means the stored state is sound.
func (lm *LibraryManager) CheckConsistency(ctx context.Context) ([]Violation, error) {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	s, err := lm.read(ctx, BooksCollection, LoansCollection)
	if err != nil {
		return nil, err
	}
	var out []Violation
	for _, c := range []Collection{BooksCollection, LoansCollection} {
		for _, key := range s.kept[c].keys() {
			out = append(out, Violation{Problem: fmt.Sprintf("%s record %q cannot be read", c, key)})
		}
	}
	return append(out, Verify(s.books, s.loans)...), nil
}

// ------------------ Utilities ------------------

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// PrettyBook formats a book for terminal lists.
func PrettyBook(b Book) string {
	return fmt.Sprintf("%-5d %-30s %-25s %-16s %d/%d", b.ID, truncate(b.Title, 30), truncate(b.Author, 25), b.ISBN, b.AvailableCopies, b.TotalCopies)
}

// PrettyLoan formats a loan for terminal lists.
func PrettyLoan(v LoanView) string {
	return fmt.Sprintf("%-5d %-30s %-20s %-10s %-10s %-8s %d", v.LoanID, truncate(v.BookTitle, 30), truncate(v.StudentDisplayName, 20), v.IssueDate, v.DueDate, v.Status, v.Fine)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
