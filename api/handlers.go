package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"library-circulation/library"
)

type loginRequest struct {
	ID     string `json:"id" validate:"required,max=64"`
	Secret string `json:"secret" validate:"required,max=72"`
}

type addBookRequest struct {
	Title  string `json:"title" validate:"required,max=256"`
	Author string `json:"author" validate:"required,max=256"`
	ISBN   string `json:"isbn" validate:"required,max=32"`
	Copies int    `json:"copies" validate:"gt=0"`
}

type issueRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	BookID    int    `json:"book_id" validate:"gt=0"`
	// DueDate defaults to today plus the loan period when empty.
	DueDate string `json:"due_date"`
}

type fineResponse struct {
	LoanID int `json:"loan_id"`
	Fine   int `json:"fine"`
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return library.ErrInvalidInput.WithMessagef("request body is not valid JSON").WithCause(err)
	}
	return s.validator.Validate(dst)
}

func loanIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, library.ErrInvalidInput.WithMessagef("loan id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	Success(w, map[string]string{"status": "healthy"}, s.logger)
}

// ------------------ Auth ------------------

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		HandleError(w, err, s.logger)
		return
	}
	sess, err := s.manager.Login(r.Context(), req.ID, req.Secret)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, sess, s.logger)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := s.manager.Logout(sess.Token); err != nil {
		HandleError(w, err, s.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	Success(w, sess.Identity, s.logger)
}

// ------------------ Catalog ------------------

func (s *Server) handleBrowseBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.manager.CatalogBrowse(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, booksResponse(books), s.logger)
}

func (s *Server) handleListAllBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.manager.CatalogListAll(r.Context())
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, booksResponse(books), s.logger)
}

func (s *Server) handleIssuableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.manager.CatalogSearchForIssue(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, booksResponse(books), s.logger)
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := s.decode(r, &req); err != nil {
		HandleError(w, err, s.logger)
		return
	}
	book, err := s.manager.CatalogAdd(r.Context(), req.Title, req.Author, req.ISBN, req.Copies)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Created(w, bookDTO{ID: book.ID, Book: book}, s.logger)
}

// bookDTO exposes the id, which the stored form keeps as the map key.
type bookDTO struct {
	ID int `json:"id"`
	library.Book
}

func booksResponse(books []library.Book) []bookDTO {
	out := make([]bookDTO, 0, len(books))
	for _, b := range books {
		out = append(out, bookDTO{ID: b.ID, Book: b})
	}
	return out
}

// ------------------ Students ------------------

func (s *Server) handleSearchStudents(w http.ResponseWriter, r *http.Request) {
	matches, err := s.manager.StudentSearch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, orEmpty(matches), s.logger)
}

// ------------------ Circulation ------------------

func (s *Server) handleMyLoans(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	loans, err := s.manager.LoanListMine(r.Context(), sess.Identity.ID)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, orEmpty(loans), s.logger)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := s.manager.LoanListAll(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, orEmpty(loans), s.logger)
}

func (s *Server) handleIssueLoan(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := s.decode(r, &req); err != nil {
		HandleError(w, err, s.logger)
		return
	}
	if req.DueDate == "" {
		req.DueDate = s.manager.DefaultDueDate().String()
	}
	loan, err := s.manager.LoanIssue(r.Context(), req.StudentID, req.BookID, req.DueDate)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Created(w, loan, s.logger)
}

func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	loan, err := s.manager.LoanReturn(r.Context(), id)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, map[string]any{"id": id, "loan": loan}, s.logger)
}

func (s *Server) handleApplyFine(w http.ResponseWriter, r *http.Request) {
	id, err := loanIDParam(r)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	total, err := s.manager.LoanApplyFine(r.Context(), id)
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, fineResponse{LoanID: id, Fine: total}, s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, stats, s.logger)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	violations, err := s.manager.CheckConsistency(r.Context())
	if err != nil {
		HandleError(w, err, s.logger)
		return
	}
	Success(w, map[string]any{"consistent": len(violations) == 0, "violations": orEmpty(violations)}, s.logger)
}
