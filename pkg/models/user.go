package models

// UserRole is the role string the backend stores for a user
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

// User is a backend user record. Password is compared in plaintext by the
// login flow because the backend exposes no credential endpoint.
type User struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password,omitempty"`
	Role     UserRole `json:"role,omitempty"`
}
