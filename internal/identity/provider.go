// Package identity integrates the external identity provider that backs
// client portal logins, and the internal team member directory.
package identity

import (
	"context"
	"errors"
)

// ErrAlreadyExists is returned by CreateUser when the email is already
// registered with the provider. Callers that only need the account to exist
// treat it as success.
var ErrAlreadyExists = errors.New("identity user already exists")

// User is the provider's view of an account.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Banned bool   `json:"banned"`
}

// Provider is the external identity collaborator contract. Implementations
// are expected to be slow network clients; every method takes a context.
type Provider interface {
	// CreateUser provisions a portal login and returns the provider's user id.
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, email string, metadata map[string]string) (string, error)
	// BanUser disables the account so the user can no longer sign in.
	BanUser(ctx context.Context, userID string) error
	// UnbanUser re-enables a previously banned account.
	UnbanUser(ctx context.Context, userID string) error
	// ListUsers returns all provisioned accounts.
	ListUsers(ctx context.Context) ([]User, error)
}
