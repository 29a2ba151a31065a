package library

import "fmt"

type seedUser struct {
	id, secret, name string
	role             Role
}

var seedUsers = []seedUser{
	{id: "admin", secret: "admin123", name: "Administrator", role: RoleAdmin},
	{id: "student1", secret: "pass123", name: "John Doe", role: RoleStudent},
	{id: "student2", secret: "pass456", name: "Jane Smith", role: RoleStudent},
}

var seedBooks = Books{
	1: {ID: 1, Title: "Python Programming", Author: "John Smith", ISBN: "978-0123456789", TotalCopies: 3, AvailableCopies: 3},
	2: {ID: 2, Title: "Data Science Basics", Author: "Mary Johnson", ISBN: "978-0987654321", TotalCopies: 2, AvailableCopies: 2},
	3: {ID: 3, Title: "Machine Learning", Author: "Bob Wilson", ISBN: "978-0456789123", TotalCopies: 4, AvailableCopies: 4},
}

// SeedUsers builds the first-run users document with hashed secrets.
func SeedUsers() (Users, error) {
	users := make(Users, len(seedUsers))
	for _, s := range seedUsers {
		hash, err := HashSecret(s.secret)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", s.id, err)
		}
		users[s.id] = User{ID: s.id, Secret: hash, Role: s.role, DisplayName: s.name}
	}
	return users, nil
}

// SeedBooks returns a fresh copy of the sample catalog.
func SeedBooks() Books {
	out := make(Books, len(seedBooks))
	for id, b := range seedBooks {
		out[id] = b
	}
	return out
}
