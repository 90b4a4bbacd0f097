package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/avdeenkov/uservault/errs"
	"github.com/avdeenkov/uservault/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

const allCols = `SELECT id, first_name, last_name, email_enc, email_token, password_hash, date_of_birth, phone_enc, created_at FROM accounts`

func accountRows(a model.Account) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "first_name", "last_name", "email_enc", "email_token",
		"password_hash", "date_of_birth", "phone_enc", "created_at",
	}).AddRow(a.ID, a.FirstName, a.LastName, a.EmailEnc, a.EmailToken,
		a.PasswordHash, a.DateOfBirth, a.PhoneEnc, a.CreatedAt)
}

func sample() model.Account {
	dob := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	return model.Account{
		ID:           1,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		EmailEnc:     []byte("enc-email"),
		EmailToken:   []byte("token"),
		PasswordHash: "$2a$10$hash",
		DateOfBirth:  &dob,
		PhoneEnc:     []byte("enc-phone"),
		CreatedAt:    time.Now(),
	}
}

func TestAccountRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sample()
	a.ID = 0

	const q = `INSERT INTO accounts \(first_name, last_name, email_enc, email_token, password_hash, date_of_birth, phone_enc\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\) RETURNING id, created_at`

	mock.ExpectQuery(q).
		WithArgs(a.FirstName, a.LastName, a.EmailEnc, a.EmailToken, a.PasswordHash, a.DateOfBirth, a.PhoneEnc).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), time.Now()))
	created, err := r.Create(ctx, &a)
	require.NoError(t, err)
	require.Equal(t, int64(7), created.ID)
	require.Zero(t, a.ID, "input account must not be mutated")

	mock.ExpectQuery(q).
		WithArgs(a.FirstName, a.LastName, a.EmailEnc, a.EmailToken, a.PasswordHash, a.DateOfBirth, a.PhoneEnc).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = r.Create(ctx, &a)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sample()

	mock.ExpectQuery(allCols+` WHERE id=\$1`).
		WithArgs(a.ID).
		WillReturnRows(accountRows(a))
	got, err := r.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.FirstName, got.FirstName)
	require.Equal(t, a.EmailToken, got.EmailToken)

	mock.ExpectQuery(allCols+` WHERE id=\$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, 99)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_GetByEmailToken(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sample()

	mock.ExpectQuery(allCols+` WHERE email_token=\$1`).
		WithArgs(a.EmailToken).
		WillReturnRows(accountRows(a))
	got, err := r.GetByEmailToken(ctx, a.EmailToken)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	mock.ExpectQuery(allCols+` WHERE email_token=\$1`).
		WithArgs([]byte("unknown")).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByEmailToken(ctx, []byte("unknown"))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()

	a := sample()
	b := sample()
	b.ID = 2
	b.DateOfBirth = nil
	b.PhoneEnc = nil

	mock.ExpectQuery(allCols+` ORDER BY id ASC OFFSET \$1 LIMIT \$2`).
		WithArgs(0, 100).
		WillReturnRows(accountRows(a).AddRow(b.ID, b.FirstName, b.LastName, b.EmailEnc, b.EmailToken,
			b.PasswordHash, b.DateOfBirth, b.PhoneEnc, b.CreatedAt))
	got, err := r.List(ctx, 0, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0].ID)
	require.Equal(t, int64(2), got[1].ID)
	require.Nil(t, got[1].DateOfBirth)
	require.Nil(t, got[1].PhoneEnc)

	mock.ExpectQuery(allCols+` ORDER BY id ASC OFFSET \$1 LIMIT \$2`).
		WithArgs(5, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "first_name", "last_name", "email_enc", "email_token",
			"password_hash", "date_of_birth", "phone_enc", "created_at",
		}))
	got, err = r.List(ctx, 5, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAccountRepo_Update(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()
	a := sample()

	first := "Grace"
	newEnc := []byte("enc-email-2")
	newTok := []byte("token-2")

	const upd = `UPDATE accounts SET first_name=\$2, last_name=\$3, email_enc=\$4, email_token=\$5, password_hash=\$6, date_of_birth=\$7, phone_enc=\$8 WHERE id=\$1`

	mock.ExpectBegin()
	mock.ExpectQuery(allCols+` WHERE id=\$1 FOR UPDATE`).
		WithArgs(a.ID).
		WillReturnRows(accountRows(a))
	mock.ExpectExec(upd).
		WithArgs(a.ID, first, a.LastName, newEnc, newTok, a.PasswordHash, a.DateOfBirth, a.PhoneEnc).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := r.Update(ctx, a.ID, model.AccountPatch{FirstName: &first, EmailEnc: newEnc, EmailToken: newTok})
	require.NoError(t, err)
	require.Equal(t, first, got.FirstName)
	require.Equal(t, a.LastName, got.LastName)
	require.Equal(t, newTok, got.EmailToken)

	// missing row rolls back
	mock.ExpectBegin()
	mock.ExpectQuery(allCols + ` WHERE id=\$1 FOR UPDATE`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()
	_, err = r.Update(ctx, 99, model.AccountPatch{FirstName: &first})
	require.ErrorIs(t, err, errs.ErrNotFound)

	// email token collision rolls back
	mock.ExpectBegin()
	mock.ExpectQuery(allCols+` WHERE id=\$1 FOR UPDATE`).
		WithArgs(a.ID).
		WillReturnRows(accountRows(a))
	mock.ExpectExec(upd).
		WithArgs(a.ID, a.FirstName, a.LastName, newEnc, newTok, a.PasswordHash, a.DateOfBirth, a.PhoneEnc).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()
	_, err = r.Update(ctx, a.ID, model.AccountPatch{EmailEnc: newEnc, EmailToken: newTok})
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAccountRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM accounts WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, 1))

	mock.ExpectExec(`DELETE FROM accounts WHERE id=\$1`).
		WithArgs(int64(99)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, 99), errs.ErrNotFound)
}
