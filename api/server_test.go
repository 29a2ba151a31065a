package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-circulation/library"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type testEnvelope struct {
	Success bool                `json:"success"`
	Data    jsoniter.RawMessage `json:"data"`
	Error   string              `json:"error"`
	Code    string              `json:"code"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	gw      *library.MemoryGateway
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	gw := library.NewMemoryGateway()
	putDoc(t, gw, library.UsersCollection, map[string]any{
		"admin":    map[string]string{"secret": "admin123", "role": "admin", "display_name": "Administrator"},
		"student1": map[string]string{"secret": "pass123", "role": "student", "display_name": "John Doe"},
		"student2": map[string]string{"secret": "pass456", "role": "student", "display_name": "Jane Smith"},
	})
	putDoc(t, gw, library.BooksCollection, map[string]any{
		"1": map[string]any{"title": "Python Programming", "author": "John Smith", "isbn": "978-0123456789", "total_copies": 1, "available_copies": 1},
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := library.NewLibraryManager(gw,
		library.WithClock(func() time.Time { return testNow }),
		library.WithLogger(logger),
	)
	t.Cleanup(func() { mgr.Close() })

	if opts.LoginBurst == 0 {
		opts.LoginBurst = 100
	}
	srv := NewServer(mgr, opts, logger)
	t.Cleanup(srv.Close)
	return &testServer{t: t, handler: srv, gw: gw}
}

func putDoc(t *testing.T, gw *library.MemoryGateway, c library.Collection, v any) {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	gw.Put(c, body)
}

func (ts *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	ts.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	var env testEnvelope
	if w.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (ts *testServer) login(id, secret string) string {
	ts.t.Helper()
	w, env := ts.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{ID: id, Secret: secret})
	require.Equal(ts.t, http.StatusOK, w.Code, env.Error)

	var sess library.Session
	require.NoError(ts.t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(ts.t, sess.Token)
	return sess.Token
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})
	w, env := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestLogin_Failures(t *testing.T) {
	ts := setupTestServer(t, Options{})

	w, env := ts.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{ID: "student1", Secret: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(library.CodeInvalidCredentials), env.Code)
	assert.False(t, env.Success)

	w, env = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"id": "student1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(library.CodeInvalidInput), env.Code)
	assert.Contains(t, env.Error, "secret is required")
}

func TestAuth_Required(t *testing.T) {
	ts := setupTestServer(t, Options{})

	w, env := ts.do(http.MethodGet, "/api/v1/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(library.CodeUnauthorized), env.Code)

	w, _ = ts.do(http.MethodGet, "/api/v1/books", "not-a-session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_StudentCannotUseStaffRoutes(t *testing.T) {
	ts := setupTestServer(t, Options{})
	token := ts.login("student1", "pass123")

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/books"},
		{http.MethodGet, "/api/v1/books/all"},
		{http.MethodGet, "/api/v1/students?q=jo"},
		{http.MethodGet, "/api/v1/loans"},
		{http.MethodPost, "/api/v1/loans"},
		{http.MethodDelete, "/api/v1/loans/1"},
		{http.MethodPost, "/api/v1/loans/1/fine"},
		{http.MethodGet, "/api/v1/stats"},
	}
	for _, rt := range routes {
		w, env := ts.do(rt.method, rt.path, token, map[string]string{})
		assert.Equal(t, http.StatusForbidden, w.Code, rt.path)
		assert.Equal(t, string(library.CodeForbidden), env.Code, rt.path)
	}

	w, env := ts.do(http.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var id library.Identity
	require.NoError(t, json.Unmarshal(env.Data, &id))
	assert.Equal(t, library.Identity{ID: "student1", Role: library.RoleStudent, DisplayName: "John Doe"}, id)
}

func TestCirculationFlow(t *testing.T) {
	ts := setupTestServer(t, Options{})
	admin := ts.login("admin", "admin123")
	student := ts.login("student1", "pass123")

	// Issue with the default due date.
	w, env := ts.do(http.MethodPost, "/api/v1/loans", admin, issueRequest{StudentID: "student1", BookID: 1})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var loan library.LoanView
	require.NoError(t, json.Unmarshal(env.Data, &loan))
	assert.Equal(t, 1, loan.LoanID)
	assert.Equal(t, "2025-03-24", loan.DueDate.String())
	assert.Equal(t, "Python Programming", loan.BookTitle)

	// The only copy is out.
	w, env = ts.do(http.MethodPost, "/api/v1/loans", admin, issueRequest{StudentID: "student2", BookID: 1, DueDate: "2025-04-01"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(library.CodeBookUnavailable), env.Code)

	w, env = ts.do(http.MethodGet, "/api/v1/books", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, env = ts.do(http.MethodGet, "/api/v1/loans/mine", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []library.LoanView
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, library.StatusActive, mine[0].Status)

	for _, want := range []int{5, 10} {
		w, env = ts.do(http.MethodPost, "/api/v1/loans/1/fine", admin, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var fine fineResponse
		require.NoError(t, json.Unmarshal(env.Data, &fine))
		assert.Equal(t, want, fine.Fine)
	}

	w, env = ts.do(http.MethodGet, "/api/v1/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"issued":1,"overdue":0}`, string(env.Data))

	w, _ = ts.do(http.MethodDelete, "/api/v1/loans/1", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = ts.do(http.MethodDelete, "/api/v1/loans/1", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(library.CodeLoanNotFound), env.Code)

	w, env = ts.do(http.MethodGet, "/api/v1/consistency", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"consistent":true,"violations":[]}`, string(env.Data))
}

func TestIssue_Rejections(t *testing.T) {
	ts := setupTestServer(t, Options{})
	admin := ts.login("admin", "admin123")

	w, env := ts.do(http.MethodPost, "/api/v1/loans", admin, issueRequest{StudentID: "student1", BookID: 1, DueDate: "31/12/2025"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(library.CodeInvalidDate), env.Code)

	w, env = ts.do(http.MethodPost, "/api/v1/loans", admin, issueRequest{StudentID: "admin", BookID: 1, DueDate: "2025-12-31"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(library.CodeStudentNotFound), env.Code)

	w, env = ts.do(http.MethodPost, "/api/v1/loans/abc/fine", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(library.CodeInvalidInput), env.Code)
}

func TestAddBook(t *testing.T) {
	ts := setupTestServer(t, Options{})
	admin := ts.login("admin", "admin123")

	w, env := ts.do(http.MethodPost, "/api/v1/books", admin, addBookRequest{Title: "Go in Action", Author: "W. Kennedy", ISBN: "978-1-61729-", Copies: 3})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	assert.JSONEq(t, `{"id":2,"title":"Go in Action","author":"W. Kennedy","isbn":"978-1-61729-","total_copies":3,"available_copies":3}`, string(env.Data))

	w, env = ts.do(http.MethodPost, "/api/v1/books", admin, addBookRequest{Title: "Go in Action", Author: "W. Kennedy", ISBN: "x", Copies: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(library.CodeInvalidInput), env.Code)

	w, env = ts.do(http.MethodGet, "/api/v1/books/issuable?q=go", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var books []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &books))
	require.Len(t, books, 1)
	assert.Equal(t, 2, books[0].ID)
}

func TestStudentSearch(t *testing.T) {
	ts := setupTestServer(t, Options{})
	admin := ts.login("admin", "admin123")

	w, env := ts.do(http.MethodGet, "/api/v1/students?q=j", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"student1","display_name":"John Doe"},{"id":"student2","display_name":"Jane Smith"}]`, string(env.Data))
}

func TestLogout(t *testing.T) {
	ts := setupTestServer(t, Options{})
	token := ts.login("student2", "pass456")

	w, _ := ts.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = ts.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{LoginRate: 0.001, LoginBurst: 2})

	for i := 0; i < 2; i++ {
		w, _ := ts.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{ID: "student1", Secret: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w, env := ts.do(http.MethodPost, "/api/v1/auth/login", "", loginRequest{ID: "student1", Secret: "pass123"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, codeRateLimited, env.Code)
}

// loginFrom posts a failing login with the given X-Forwarded-For header.
func (ts *testServer) loginFrom(forwardedFor string) int {
	ts.t.Helper()
	raw, err := json.Marshal(loginRequest{ID: "student1", Secret: "wrong"})
	require.NoError(ts.t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w.Code
}

func TestLogin_RateLimitIgnoresForwardedFor(t *testing.T) {
	ts := setupTestServer(t, Options{LoginRate: 0.001, LoginBurst: 2})

	assert.Equal(t, http.StatusUnauthorized, ts.loginFrom("10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, ts.loginFrom("10.0.0.2"))
	for i := 3; i < 6; i++ {
		assert.Equal(t, http.StatusTooManyRequests, ts.loginFrom(fmt.Sprintf("10.0.0.%d", i)))
	}
}

func TestLogin_TrustProxyKeysOnForwardedFor(t *testing.T) {
	ts := setupTestServer(t, Options{LoginRate: 0.001, LoginBurst: 1, TrustProxy: true})

	assert.Equal(t, http.StatusUnauthorized, ts.loginFrom("10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, ts.loginFrom("10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, ts.loginFrom("10.0.0.1"))
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	now := testNow
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(limiterIdleTTL + time.Second)
	rl.Allow("10.0.0.2")
	require.Equal(t, 2, rl.Len())

	rl.evictIdle()
	assert.Equal(t, 1, rl.Len())
	assert.True(t, rl.Allow("10.0.0.1"), "evicted key starts with a full bucket")

	rl.Stop()
	rl.Stop()
}

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{library.ErrPersistenceUnavailable, http.StatusServiceUnavailable},
		{library.ErrInconsistent, http.StatusInternalServerError},
		{library.ErrBookNotFound.WithMessagef("book 3 not found"), http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		HandleError(w, tt.err, nil)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}
