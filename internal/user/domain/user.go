package domain

import "time"

// User is an account that can authenticate. PasswordDigest is the bcrypt
// digest of the password; it is stripped before the user leaves the auth layer.
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordDigest string
	FullName       string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
