package library

// Role distinguishes library staff from borrowers.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// User is a pre-seeded account. Secret holds a bcrypt hash for seeded accounts;
// plaintext secrets written by older installs are still accepted.
type User struct {
	ID          string `json:"-"`
	Secret      string `json:"secret"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// UnmarshalJSON also reads the legacy "password" and "name" keys.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var raw struct {
		plain
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.Secret == "" {
		u.Secret = raw.Password
	}
	if u.DisplayName == "" {
		u.DisplayName = raw.Name
	}
	return nil
}

// Identity is what a successful login reveals about a user.
type Identity struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
}

// Book is a catalog record together with its copy inventory.
type Book struct {
	ID              int    `json:"-"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

// UnmarshalJSON upgrades single-copy records that only carry an "available" flag.
func (b *Book) UnmarshalJSON(data []byte) error {
	type plain Book
	var raw struct {
		plain
		Available *bool `json:"available"`
	}
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Book(raw.plain)
	if b.TotalCopies == 0 && raw.Available != nil {
		b.TotalCopies = 1
		b.AvailableCopies = 0
		if *raw.Available {
			b.AvailableCopies = 1
		}
	}
	return nil
}

// OnLoan is the number of copies currently issued.
func (b Book) OnLoan() int { return b.TotalCopies - b.AvailableCopies }

// Loan links one issued copy of a book to one student until it is returned.
type Loan struct {
	ID        int    `json:"-"`
	BookID    int    `json:"book_id,string"`
	Student   string `json:"student"`
	IssueDate Date   `json:"issue_date"`
	DueDate   Date   `json:"due_date"`
	Fine      int    `json:"fine"`
}

// LoanStatus is derived from the due date, never stored.
type LoanStatus string

const (
	StatusActive  LoanStatus = "active"
	StatusOverdue LoanStatus = "overdue"
)

// LoanView is a loan joined with the names a front end displays.
type LoanView struct {
	Loan
	LoanID             int        `json:"id"`
	StudentDisplayName string     `json:"student_name"`
	BookTitle          string     `json:"book_title"`
	Status             LoanStatus `json:"status"`
}

// StudentMatch is one row of a student search.
type StudentMatch struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Stats summarises the active loans.
type Stats struct {
	Issued  int `json:"issued"`
	Overdue int `json:"overdue"`
}
