package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/avdeenkov/uservault/errs"
	"github.com/avdeenkov/uservault/model"
)

// AccountRepo implements repository.AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, first_name, last_name, email_enc, email_token, password_hash, date_of_birth, phone_enc, created_at`

// Create inserts a new account row and fills in ID and CreatedAt.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) (*model.Account, error) {
	const q = `
INSERT INTO accounts (first_name, last_name, email_enc, email_token, password_hash, date_of_birth, phone_enc)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	row := r.db.Pool.QueryRow(ctx, q,
		a.FirstName, a.LastName, a.EmailEnc, a.EmailToken, a.PasswordHash, a.DateOfBirth, a.PhoneEnc)
	created := *a
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, storeErr(err)
	}
	return &created, nil
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByEmailToken selects an account by its email lookup token. The token
// column is unique, so at most one row matches.
func (r *AccountRepo) GetByEmailToken(ctx context.Context, token []byte) (*model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts WHERE email_token=$1`
	return scanAccount(r.db.Pool.QueryRow(ctx, q, token))
}

// List selects a page of accounts in ascending ID order.
func (r *AccountRepo) List(ctx context.Context, offset, limit int) ([]model.Account, error) {
	const q = `SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC OFFSET $1 LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	accounts := make([]model.Account, 0, limit)
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.EmailEnc, &a.EmailToken,
			&a.PasswordHash, &a.DateOfBirth, &a.PhoneEnc, &a.CreatedAt); err != nil {
			return nil, storeErr(err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return accounts, nil
}

// Update loads the row under lock, applies the patch field by field and writes
// the result back, all in one transaction. The ID is never touched.
func (r *AccountRepo) Update(ctx context.Context, id int64, p model.AccountPatch) (a *model.Account, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			a, err = nil, storeErr(e)
		}
	}()

	const sel = `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1 FOR UPDATE`
	a, err = scanAccount(tx.QueryRow(ctx, sel, id))
	if err != nil {
		return nil, err
	}

	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.EmailEnc != nil {
		a.EmailEnc = p.EmailEnc
		a.EmailToken = p.EmailToken
	}
	if p.PasswordHash != nil {
		a.PasswordHash = *p.PasswordHash
	}
	if p.DateOfBirth != nil {
		a.DateOfBirth = p.DateOfBirth
	}
	if p.PhoneEnc != nil {
		a.PhoneEnc = p.PhoneEnc
	}

	const upd = `
UPDATE accounts
SET first_name=$2, last_name=$3, email_enc=$4, email_token=$5, password_hash=$6, date_of_birth=$7, phone_enc=$8
WHERE id=$1`
	if _, err = tx.Exec(ctx, upd,
		id, a.FirstName, a.LastName, a.EmailEnc, a.EmailToken, a.PasswordHash, a.DateOfBirth, a.PhoneEnc); err != nil {
		if isUniqueViolation(err) {
			return nil, errs.ErrAlreadyExists
		}
		return nil, storeErr(err)
	}
	return a, nil
}

// Delete removes an account row.
func (r *AccountRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM accounts WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return storeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// scanAccount reads one full account row.
func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.FirstName, &a.LastName, &a.EmailEnc, &a.EmailToken,
		&a.PasswordHash, &a.DateOfBirth, &a.PhoneEnc, &a.CreatedAt)
	switch {
	case err == nil:
		return &a, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, errs.ErrNotFound
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		return nil, storeErr(err)
	}
}
