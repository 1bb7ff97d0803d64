package user

// User represents a user entity in the system.
// The zero value is a user that has not been persisted yet.
type User struct {
	ID    int64  // ID is assigned by the store on insert and never changes afterwards
	Name  string // Name is free text, no constraint is enforced
	Email string // Email is free text, no format or uniqueness constraint is enforced
}

// New creates a transient user with the given name and email.
func New(name, email string) User {
	return User{Name: name, Email: email}
}
