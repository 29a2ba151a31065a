package library

import (
	"strings"
	"time"
)

// DateLayout is the on-disk and on-wire calendar date format.
const DateLayout = "2006-01-02"

// storedDateLayout also accepts unpadded months and days, which older
// documents contain.
const storedDateLayout = "2006-1-2"

// DefaultLoanPeriod is how far out the issue form proposes a due date.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Date is a calendar date without time of day. The zero value is "no date".
type Date struct {
	t time.Time
}

// ParseDate parses a YYYY-MM-DD string. Anything else is an InvalidDate error.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate.WithMessagef("invalid date %q, use YYYY-MM-DD", s).WithCause(err)
	}
	return Date{t: t}, nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(storedDateLayout, strings.TrimSpace(s))
	if err != nil {
		return ErrInvalidDate.WithMessagef("invalid stored date %q", s).WithCause(err)
	}
	*d = Date{t: t}
	return nil
}

// DefaultDueDate is the due date proposed for a loan issued on today.
func DefaultDueDate(today Date, period time.Duration) Date {
	if period <= 0 {
		period = DefaultLoanPeriod
	}
	return today.AddDays(int(period / (24 * time.Hour)))
}
