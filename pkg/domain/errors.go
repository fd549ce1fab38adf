package domain

import "fmt"

// ErrNotFound is returned when a mutation targets a record that does not exist.
// Lookups report absence with a boolean instead; only writes observe this error.
type ErrNotFound struct {
	Entity EntityType
	Key    string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

// ErrDuplicateEmail is returned when adding a guide or user whose email
// (compared case-insensitively) already exists in the collection.
type ErrDuplicateEmail struct {
	Entity EntityType
	Email  string
}

func (e ErrDuplicateEmail) Error() string {
	return fmt.Sprintf("%s with email %s already exists", e.Entity, e.Email)
}
