// Package service contains the application service orchestrating account
// signup, login and listing over the cipher and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pkgcrypto "github.com/avdeenkov/uservault/crypto"
	"github.com/avdeenkov/uservault/crypto/fieldcipher"
	"github.com/avdeenkov/uservault/errs"
	"github.com/avdeenkov/uservault/model"
	"github.com/avdeenkov/uservault/repository"
)

// DefaultListLimit is the page size callers should apply when the client did
// not ask for one.
const DefaultListLimit = 100

// dateLayout is the accepted form for date_of_birth input and the ISO form
// used in listing output.
const dateLayout = "2006-01-02"

// AccountService defines account lifecycle operations.
type AccountService interface {
	// SignUp validates and registers a new account, returning a sanitized view.
	SignUp(ctx context.Context, in model.NewAccount) (*model.AccountView, error)
	// Login authenticates by email and password. Every failure is
	// errs.ErrUnauthorized, regardless of cause.
	Login(ctx context.Context, identifier, password string) (model.Profile, error)
	// Get returns one account as a sanitized view.
	Get(ctx context.Context, id int64) (*model.AccountView, error)
	// List returns a page of sanitized views ordered by ID ascending.
	List(ctx context.Context, offset, limit int) ([]model.AccountView, error)
	// Update overwrites the provided fields and returns the updated view.
	Update(ctx context.Context, id int64, in model.AccountUpdate) (*model.AccountView, error)
	// Delete removes an account.
	Delete(ctx context.Context, id int64) error
}

type AccountServiceImpl struct {
	repo       repository.AccountRepository
	cipher     *fieldcipher.Cipher
	bcryptCost int
	log        *zap.Logger
}

// NewAccountService constructs AccountService with required dependencies.
// A nil logger disables logging; bcryptCost 0 selects the bcrypt default.
func NewAccountService(repo repository.AccountRepository, cipher *fieldcipher.Cipher, bcryptCost int, log *zap.Logger) *AccountServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountServiceImpl{repo: repo, cipher: cipher, bcryptCost: bcryptCost, log: log}
}

// SignUp validates input, encrypts email and phone, hashes the password and
// persists the account. Plaintext-email uniqueness is enforced through the
// unique lookup token, so two concurrent signups with the same email cannot
// both succeed.
func (s *AccountServiceImpl) SignUp(ctx context.Context, in model.NewAccount) (*model.AccountView, error) {
	if fieldcipher.Normalize(in.Email) == "" {
		return nil, fmt.Errorf("%w: email is required", errs.ErrValidation)
	}
	if in.FirstName == "" || in.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", errs.ErrValidation)
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", errs.ErrValidation)
	}
	if len(in.Password) > pkgcrypto.MaxPasswordLen {
		return nil, fmt.Errorf("%w: password longer than %d bytes", errs.ErrValidation, pkgcrypto.MaxPasswordLen)
	}

	var dob *time.Time
	if in.DateOfBirth != "" {
		d, err := parseDate(in.DateOfBirth)
		if err != nil {
			return nil, err
		}
		dob = d
	}

	emailEnc, err := s.cipher.Encrypt(in.Email)
	if err != nil {
		s.log.Error("encrypt email", zap.Error(err))
		return nil, err
	}
	var phoneEnc []byte
	if in.Phone != "" {
		if phoneEnc, err = s.cipher.Encrypt(in.Phone); err != nil {
			s.log.Error("encrypt phone", zap.Error(err))
			return nil, err
		}
	}
	hash, err := pkgcrypto.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, &model.Account{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		EmailEnc:     emailEnc,
		EmailToken:   s.cipher.LookupToken(in.Email),
		PasswordHash: hash,
		DateOfBirth:  dob,
		PhoneEnc:     phoneEnc,
	})
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("email already registered: %w", errs.ErrAlreadyExists)
		}
		s.log.Error("create account", zap.Error(err))
		return nil, err
	}
	return s.view(created), nil
}

// Login looks the account up by its email token and verifies the password.
// Unknown email, wrong password and internal failures all collapse into
// ErrUnauthorized so the caller cannot learn which one occurred; internal
// causes are logged here instead.
func (s *AccountServiceImpl) Login(ctx context.Context, identifier, password string) (model.Profile, error) {
	norm := fieldcipher.Normalize(identifier)
	if norm == "" || password == "" {
		return model.Profile{}, errs.ErrUnauthorized
	}

	a, err := s.repo.GetByEmailToken(ctx, s.cipher.LookupToken(identifier))
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			s.log.Error("account lookup", zap.Error(err))
		}
		return model.Profile{}, errs.ErrUnauthorized
	}
	if !pkgcrypto.VerifyPassword(password, a.PasswordHash) {
		return model.Profile{}, errs.ErrUnauthorized
	}

	// The stored ciphertext is canonical; if it cannot be decrypted the
	// account still authenticates (token and hash matched) and the normalized
	// identifier stands in for the email.
	email, err := s.cipher.Decrypt(a.EmailEnc)
	if err != nil {
		s.log.Warn("decrypt email of authenticated account", zap.Int64("id", a.ID), zap.Error(err))
		email = norm
	}
	return model.Profile{Email: email, FirstName: a.FirstName, LastName: a.LastName}, nil
}

// Get returns one account as a sanitized view.
func (s *AccountServiceImpl) Get(ctx context.Context, id int64) (*model.AccountView, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(a), nil
}

// List returns a page of sanitized views. A field that fails to decrypt is
// reported as absent rather than failing the page; the number of skipped
// fields is logged so corruption is visible instead of silently swallowed.
func (s *AccountServiceImpl) List(ctx context.Context, offset, limit int) ([]model.AccountView, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must be non-negative", errs.ErrValidation)
	}
	views := make([]model.AccountView, 0, limit)
	if limit == 0 {
		return views, nil
	}

	accounts, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	skipped := 0
	for i := range accounts {
		v, n := s.viewCounting(&accounts[i])
		skipped += n
		views = append(views, *v)
	}
	if skipped > 0 {
		s.log.Warn("listing returned records with undecryptable fields",
			zap.Int("skipped_fields", skipped), zap.Int("records", len(accounts)))
	}
	return views, nil
}

// Update applies a partial overwrite. A new email is re-encrypted and gets a
// new lookup token; a new password is rehashed. The ID is immutable.
func (s *AccountServiceImpl) Update(ctx context.Context, id int64, in model.AccountUpdate) (*model.AccountView, error) {
	var p model.AccountPatch

	if in.FirstName != nil {
		if *in.FirstName == "" {
			return nil, fmt.Errorf("%w: first name cannot be empty", errs.ErrValidation)
		}
		p.FirstName = in.FirstName
	}
	if in.LastName != nil {
		if *in.LastName == "" {
			return nil, fmt.Errorf("%w: last name cannot be empty", errs.ErrValidation)
		}
		p.LastName = in.LastName
	}
	if in.Email != nil {
		if fieldcipher.Normalize(*in.Email) == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", errs.ErrValidation)
		}
		enc, err := s.cipher.Encrypt(*in.Email)
		if err != nil {
			s.log.Error("encrypt email", zap.Error(err))
			return nil, err
		}
		p.EmailEnc = enc
		p.EmailToken = s.cipher.LookupToken(*in.Email)
	}
	if in.Password != nil {
		if *in.Password == "" || len(*in.Password) > pkgcrypto.MaxPasswordLen {
			return nil, fmt.Errorf("%w: invalid password", errs.ErrValidation)
		}
		hash, err := pkgcrypto.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		p.PasswordHash = &hash
	}
	if in.DateOfBirth != nil {
		d, err := parseDate(*in.DateOfBirth)
		if err != nil {
			return nil, err
		}
		p.DateOfBirth = d
	}
	if in.Phone != nil {
		enc, err := s.cipher.Encrypt(*in.Phone)
		if err != nil {
			s.log.Error("encrypt phone", zap.Error(err))
			return nil, err
		}
		p.PhoneEnc = enc
	}

	a, err := s.repo.Update(ctx, id, p)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, fmt.Errorf("email already registered: %w", errs.ErrAlreadyExists)
		}
		return nil, err
	}
	return s.view(a), nil
}

// Delete removes an account.
func (s *AccountServiceImpl) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// view builds the sanitized representation of an account, dropping the
// password hash and decrypting the encrypted fields.
func (s *AccountServiceImpl) view(a *model.Account) *model.AccountView {
	v, _ := s.viewCounting(a)
	return v
}

// viewCounting is view plus the number of fields that failed to decrypt.
func (s *AccountServiceImpl) viewCounting(a *model.Account) (*model.AccountView, int) {
	v := &model.AccountView{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
	skipped := 0
	if email, err := s.cipher.Decrypt(a.EmailEnc); err == nil {
		v.Email = &email
	} else {
		skipped++
	}
	if a.PhoneEnc != nil {
		if phone, err := s.cipher.Decrypt(a.PhoneEnc); err == nil {
			v.Phone = &phone
		} else {
			skipped++
		}
	}
	if a.DateOfBirth != nil {
		iso := a.DateOfBirth.Format(dateLayout)
		v.DateOfBirth = &iso
	}
	return v, skipped
}

// parseDate parses a YYYY-MM-DD date string.
func parseDate(s string) (*time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD", errs.ErrValidation)
	}
	return &d, nil
}
