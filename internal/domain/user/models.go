package user

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrNotFound      = errors.New("user not found")
	ErrDuplicateName = errors.New("username already taken")
)

// User is the owner identity the ledger trusts. The engine never
// authenticates callers itself; it only consumes the user ID.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CreateParams contains parameters for registering a user.
type CreateParams struct {
	Username     string
	PasswordHash string
}

// Repository defines user data access. Implemented in the infrastructure
// layer.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}
