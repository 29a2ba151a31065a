package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"library-circulation/library"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive lending desk",
		Long: `Opens an interactive prompt. Log in as a student to browse the catalog and
see your loans, or as an admin to add books and issue, return and fine loans.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openSeeded(cmd)
			if err != nil {
				return err
			}
			defer mgr.Close()

			return newShell(mgr, cmd.InOrStdin(), cmd.OutOrStdout()).run(cmd.Context())
		},
	}
}

type shell struct {
	mgr *library.LibraryManager
	sc  *bufio.Scanner
	out io.Writer

	// readSecret masks input on a terminal and reads a plain line otherwise.
	readSecret func(prompt string) (string, bool)

	session *library.Session
}

func newShell(mgr *library.LibraryManager, in io.Reader, out io.Writer) *shell {
	sh := &shell{mgr: mgr, sc: bufio.NewScanner(in), out: out}
	sh.readSecret = sh.prompt
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		sh.readSecret = func(prompt string) (string, bool) {
			fmt.Fprint(out, prompt)
			secret, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", false
			}
			return strings.TrimSpace(string(secret)), true
		}
	}
	return sh
}

// prompt prints label and reads one trimmed line. It reports false at end of input.
func (sh *shell) prompt(label string) (string, bool) {
	fmt.Fprint(sh.out, label)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

func (sh *shell) printf(format string, args ...any) {
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) println(args ...any) {
	fmt.Fprintln(sh.out, args...)
}

// fail prints a circulation error the way a user should see it.
func (sh *shell) fail(err error) {
	var le *library.Error
	if errors.As(err, &le) && le.Code != library.CodePersistenceUnavailable {
		sh.printf("Error: %s\n", le.Message)
		return
	}
	sh.printf("Error: %v\n", err)
}

func (sh *shell) run(ctx context.Context) error {
	sh.println("Welcome to the Library Circulation Desk!")
	sh.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}
		cmd, ok := sh.prompt("\n> ")
		if !ok {
			sh.logout()
			return nil
		}

		switch cmd {
		case "":
		case "help":
			sh.printHelp()
		case "exit", "quit":
			sh.logout()
			sh.println("Goodbye!")
			return nil
		case "login":
			sh.handleLogin(ctx)
		case "logout":
			if sh.session == nil {
				sh.println("Not logged in.")
				continue
			}
			name := sh.session.Identity.DisplayName
			sh.logout()
			sh.printf("Goodbye, %s.\n", name)
		default:
			if !sh.dispatch(ctx, cmd) {
				sh.println("Unknown command. Type 'help' to see the available commands.")
			}
		}
	}
}

// dispatch runs a command that needs a session. It reports false for
// commands the current role does not have.
func (sh *shell) dispatch(ctx context.Context, cmd string) bool {
	if sh.session == nil {
		return false
	}
	if sh.session.Identity.Role == library.RoleAdmin {
		switch cmd {
		case "books":
			sh.handleListBooks(ctx)
		case "add book":
			sh.handleAddBook(ctx)
		case "issue book":
			sh.handleIssueBook(ctx)
		case "loans":
			sh.handleListLoans(ctx)
		case "return":
			sh.handleReturn(ctx)
		case "fine":
			sh.handleApplyFine(ctx)
		case "stats":
			sh.handleStats(ctx)
		default:
			return false
		}
		return true
	}
	switch cmd {
	case "browse":
		sh.handleBrowse(ctx)
	case "my books":
		sh.handleMyBooks(ctx)
	default:
		return false
	}
	return true
}

func (sh *shell) printHelp() {
	sh.println("Available commands:")
	switch {
	case sh.session == nil:
		sh.println("  login, help, exit")
	case sh.session.Identity.Role == library.RoleAdmin:
		sh.println("  Catalog: books, add book")
		sh.println("  Circulation: issue book, loans, return, fine, stats")
		sh.println("  Session: logout, help, exit")
	default:
		sh.println("  Catalog: browse")
		sh.println("  Loans: my books")
		sh.println("  Session: logout, help, exit")
	}
}

func (sh *shell) logout() {
	if sh.session == nil {
		return
	}
	_ = sh.mgr.Logout(sh.session.Token)
	sh.session = nil
}

func (sh *shell) handleLogin(ctx context.Context) {
	if sh.session != nil {
		sh.printf("Already logged in as %s. Log out first.\n", sh.session.Identity.ID)
		return
	}
	id, ok := sh.prompt("Username: ")
	if !ok {
		return
	}
	secret, ok := sh.readSecret("Password: ")
	if !ok {
		return
	}

	sess, err := sh.mgr.Login(ctx, id, secret)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.session = &sess

	role := "Student"
	if sess.Identity.Role == library.RoleAdmin {
		role = "Admin"
	}
	sh.printf("Welcome, %s! (%s)\n", sess.Identity.DisplayName, role)
	if sess.Identity.Role == library.RoleAdmin {
		sh.handleStats(ctx)
	}
	sh.printHelp()
}

// ------------------ Student ------------------

func (sh *shell) handleBrowse(ctx context.Context) {
	query, ok := sh.prompt("Search by title or author (Enter for all): ")
	if !ok {
		return
	}
	books, err := sh.mgr.CatalogBrowse(ctx, query)
	if err != nil {
		sh.fail(err)
		return
	}
	if len(books) == 0 {
		sh.println("No available books found.")
		return
	}
	sh.printBooks(books)
}

func (sh *shell) handleMyBooks(ctx context.Context) {
	loans, err := sh.mgr.LoanListMine(ctx, sh.session.Identity.ID)
	if err != nil {
		sh.fail(err)
		return
	}
	if len(loans) == 0 {
		sh.println("No books borrowed.")
		return
	}
	sh.printLoans(loans)
}

// ------------------ Admin ------------------

func (sh *shell) handleListBooks(ctx context.Context) {
	books, err := sh.mgr.CatalogListAll(ctx)
	if err != nil {
		sh.fail(err)
		return
	}
	if len(books) == 0 {
		sh.println("No books in the library.")
		return
	}
	sh.printBooks(books)
}

func (sh *shell) handleAddBook(ctx context.Context) {
	title, ok := sh.prompt("Title: ")
	if !ok {
		return
	}
	author, ok := sh.prompt("Author: ")
	if !ok {
		return
	}
	isbn, ok := sh.prompt("ISBN: ")
	if !ok {
		return
	}
	copiesStr, ok := sh.prompt("Number of copies: ")
	if !ok {
		return
	}
	copies, err := library.ParseCopies(copiesStr)
	if err != nil {
		sh.fail(err)
		return
	}

	book, err := sh.mgr.CatalogAdd(ctx, title, author, isbn, copies)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.printf("Book '%s' added with ID %d (%d copies)\n", book.Title, book.ID, book.TotalCopies)
}

func (sh *shell) handleIssueBook(ctx context.Context) {
	student, ok := sh.pickStudent(ctx)
	if !ok {
		return
	}
	book, ok := sh.pickBook(ctx)
	if !ok {
		return
	}

	due := sh.mgr.DefaultDueDate().String()
	input, ok := sh.prompt(fmt.Sprintf("Due date (YYYY-MM-DD) [%s]: ", due))
	if !ok {
		return
	}
	if input != "" {
		due = input
	}

	loan, err := sh.mgr.LoanIssue(ctx, student.ID, book.ID, due)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.printf("Book '%s' issued to %s until %s (loan %d)\n", loan.BookTitle, loan.StudentDisplayName, loan.DueDate, loan.LoanID)
}

func (sh *shell) pickStudent(ctx context.Context) (library.StudentMatch, bool) {
	query, ok := sh.prompt("Search student by name or ID: ")
	if !ok {
		return library.StudentMatch{}, false
	}
	matches, err := sh.mgr.StudentSearch(ctx, query)
	if err != nil {
		sh.fail(err)
		return library.StudentMatch{}, false
	}
	if len(matches) == 0 {
		sh.println("No students found.")
		return library.StudentMatch{}, false
	}
	for i, m := range matches {
		sh.printf("  %d. %s (%s)\n", i+1, m.DisplayName, m.ID)
	}
	i, ok := sh.pick(len(matches))
	if !ok {
		return library.StudentMatch{}, false
	}
	sh.printf("Selected: %s\n", matches[i].DisplayName)
	return matches[i], true
}

func (sh *shell) pickBook(ctx context.Context) (library.Book, bool) {
	query, ok := sh.prompt("Search book by title: ")
	if !ok {
		return library.Book{}, false
	}
	books, err := sh.mgr.CatalogSearchForIssue(ctx, query)
	if err != nil {
		sh.fail(err)
		return library.Book{}, false
	}
	if len(books) == 0 {
		sh.println("No available books found.")
		return library.Book{}, false
	}
	for i, b := range books {
		sh.printf("  %d. %s by %s (%d available)\n", i+1, b.Title, b.Author, b.AvailableCopies)
	}
	i, ok := sh.pick(len(books))
	if !ok {
		return library.Book{}, false
	}
	sh.printf("Selected: %s\n", books[i].Title)
	return books[i], true
}

// pick reads a 1-based choice and returns it 0-based.
func (sh *shell) pick(n int) (int, bool) {
	input, ok := sh.prompt(fmt.Sprintf("Select [1-%d]: ", n))
	if !ok {
		return 0, false
	}
	choice, err := strconv.Atoi(input)
	if err != nil || choice < 1 || choice > n {
		sh.printf("Invalid selection: %s\n", input)
		return 0, false
	}
	return choice - 1, true
}

func (sh *shell) handleListLoans(ctx context.Context) {
	query, ok := sh.prompt("Search by student name or ID (Enter for all): ")
	if !ok {
		return
	}
	loans, err := sh.mgr.LoanListAll(ctx, query)
	if err != nil {
		sh.fail(err)
		return
	}
	if len(loans) == 0 {
		if query != "" {
			sh.println("No loans found matching your search.")
		} else {
			sh.println("No books currently issued.")
		}
		return
	}
	sh.printLoans(loans)
}

func (sh *shell) readLoanID() (int, bool) {
	input, ok := sh.prompt("Loan ID: ")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(input)
	if err != nil {
		sh.printf("Invalid loan ID: %s\n", input)
		return 0, false
	}
	return id, true
}

func (sh *shell) handleReturn(ctx context.Context) {
	id, ok := sh.readLoanID()
	if !ok {
		return
	}
	loan, err := sh.mgr.LoanReturn(ctx, id)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.printf("Loan %d returned (book %d, student %s)\n", id, loan.BookID, loan.Student)
	if loan.Fine > 0 {
		sh.printf("Outstanding fine at return: %d\n", loan.Fine)
	}
}

func (sh *shell) handleApplyFine(ctx context.Context) {
	id, ok := sh.readLoanID()
	if !ok {
		return
	}
	total, err := sh.mgr.LoanApplyFine(ctx, id)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.printf("Fine of %d applied to loan %d. Total fine: %d\n", sh.mgr.FineIncrement(), id, total)
}

func (sh *shell) handleStats(ctx context.Context) {
	stats, err := sh.mgr.Stats(ctx)
	if err != nil {
		sh.fail(err)
		return
	}
	sh.printf("Books issued: %d    Books overdue: %d\n", stats.Issued, stats.Overdue)
}

// ------------------ Output ------------------

func (sh *shell) printBooks(books []library.Book) {
	sh.printf("%-5s %-30s %-25s %-16s %s\n", "ID", "Title", "Author", "ISBN", "Avail")
	sh.println(strings.Repeat("-", 85))
	for _, b := range books {
		sh.println(library.PrettyBook(b))
	}
}

func (sh *shell) printLoans(loans []library.LoanView) {
	sh.printf("%-5s %-30s %-20s %-10s %-10s %-8s %s\n", "Loan", "Book", "Student", "Issued", "Due", "Status", "Fine")
	sh.println(strings.Repeat("-", 95))
	for _, v := range loans {
		sh.println(library.PrettyLoan(v))
	}
}
