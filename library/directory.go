package library

import (
	"sort"
	"strings"
)

// Directory answers identity questions over a loaded users document. It has
// no mutation API: accounts only come from seeding.
type Directory struct {
	users Users
}

func NewDirectory(users Users) *Directory {
	if users == nil {
		users = Users{}
	}
	return &Directory{users: users}
}

// Authenticate checks an identifier and secret pair.
func (d *Directory) Authenticate(identifier, secret string) (Identity, error) {
	u, ok := d.users[identifier]
	if !ok || !verifySecret(u.Secret, secret) {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{ID: identifier, Role: u.Role, DisplayName: u.DisplayName}, nil
}

func (d *Directory) Get(identifier string) (User, bool) {
	u, ok := d.users[identifier]
	return u, ok
}

// DisplayName falls back to the identifier for unknown users.
func (d *Directory) DisplayName(identifier string) string {
	if u, ok := d.users[identifier]; ok && u.DisplayName != "" {
		return u.DisplayName
	}
	return identifier
}

// IsStudent reports whether identifier names a student account.
func (d *Directory) IsStudent(identifier string) bool {
	u, ok := d.users[identifier]
	return ok && u.Role == RoleStudent
}

// FindStudents matches students whose identifier or display name contains
// query, ignoring case. Results are in identifier order. An empty query
// matches nobody.
func (d *Directory) FindStudents(query string) []StudentMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var matches []StudentMatch
	for _, id := range ids {
		u := d.users[id]
		if u.Role != RoleStudent {
			continue
		}
		if strings.Contains(strings.ToLower(id), q) || strings.Contains(strings.ToLower(u.DisplayName), q) {
			matches = append(matches, StudentMatch{ID: id, DisplayName: u.DisplayName})
		}
	}
	return matches
}
