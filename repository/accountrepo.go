// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/avdeenkov/uservault/model"
)

// AccountRepository provides CRUD access to account rows. Encrypted fields are
// opaque at this layer; the store never decrypts.
type AccountRepository interface {
	// Create inserts a new account and returns it with ID and CreatedAt set.
	// A lookup-token collision yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account) (*model.Account, error)
	// GetByID loads an account by ID.
	GetByID(ctx context.Context, id int64) (*model.Account, error)
	// GetByEmailToken loads an account by its email lookup token.
	GetByEmailToken(ctx context.Context, token []byte) (*model.Account, error)
	// List returns accounts ordered by ID ascending, skipping offset rows and
	// returning at most limit.
	List(ctx context.Context, offset, limit int) ([]model.Account, error)
	// Update overwrites the fields set in p and returns the updated account.
	// The ID is immutable.
	Update(ctx context.Context, id int64, p model.AccountPatch) (*model.Account, error)
	// Delete removes an account; errs.ErrNotFound if no row existed.
	Delete(ctx context.Context, id int64) error
}
