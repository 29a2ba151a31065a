package library

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("leap day: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("string = %s", d)
	}

	for _, in := range []string{"", "2023-02-29", "2024-1-5", "05/01/2024", "2024-05-01T10:00:00Z"} {
		_, err := ParseDate(in)
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: want InvalidDate, got %v", in, err)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var loan Loan
	if err := jsonAPI.Unmarshal([]byte(`{"book_id":"3","due_date":"2025-01-31","issue_date":""}`), &loan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loan.BookID != 3 || loan.DueDate.String() != "2025-01-31" || !loan.IssueDate.IsZero() {
		t.Fatalf("loan = %+v", loan)
	}
	if err := jsonAPI.Unmarshal([]byte(`{"due_date":"2025-3-5"}`), &loan); err != nil {
		t.Fatalf("unpadded stored date: %v", err)
	}
	if loan.DueDate.String() != "2025-03-05" {
		t.Fatalf("unpadded due = %s", loan.DueDate)
	}
	if err := jsonAPI.Unmarshal([]byte(`{"due_date":"tomorrow"}`), &loan); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestDefaultDueDate(t *testing.T) {
	today := DateOf(time.Date(2025, time.December, 25, 23, 59, 0, 0, time.UTC))
	if got := DefaultDueDate(today, DefaultLoanPeriod).String(); got != "2026-01-08" {
		t.Fatalf("due = %s", got)
	}
	if got := DefaultDueDate(today, 0).String(); got != "2026-01-08" {
		t.Fatalf("zero period due = %s", got)
	}
}
