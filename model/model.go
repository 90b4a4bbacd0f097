// Package model defines domain entities used by services and repositories.
package model

import "time"

// Account is a stored user row. Email and phone are kept encrypted; the store
// never sees their plaintext form.
type Account struct {
	ID           int64      // PK, assigned by the store on creation
	FirstName    string     // required
	LastName     string     // required
	EmailEnc     []byte     // AEAD ciphertext of the email as entered
	EmailToken   []byte     // deterministic lookup token of the normalized email, unique
	PasswordHash string     // bcrypt hash, set at creation, only ever replaced wholesale
	DateOfBirth  *time.Time // optional
	PhoneEnc     []byte     // AEAD ciphertext of the phone, nil if absent
	CreatedAt    time.Time
}

// NewAccount is the signup input. DateOfBirth is a YYYY-MM-DD string or empty;
// Phone is optional.
type NewAccount struct {
	Email       string
	FirstName   string
	LastName    string
	Password    string
	DateOfBirth string
	Phone       string
}

// AccountUpdate carries optional replacement values for an account; nil means
// "leave unchanged". ID is never updatable.
type AccountUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Password    *string
	DateOfBirth *string // YYYY-MM-DD
	Phone       *string
}

// AccountPatch is the store-level form of an update: crypto work already done
// by the service, fields nil/empty when unchanged. EmailEnc and EmailToken are
// always set together.
type AccountPatch struct {
	FirstName    *string
	LastName     *string
	EmailEnc     []byte
	EmailToken   []byte
	PasswordHash *string
	DateOfBirth  *time.Time
	PhoneEnc     []byte
}

// Profile is the sanitized login result. It never carries the password hash.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
}

// AccountView is one decrypted listing entry. Email or Phone is nil when the
// stored ciphertext could not be decrypted, DateOfBirth (ISO date string) when
// none is recorded.
type AccountView struct {
	ID          int64
	FirstName   string
	LastName    string
	Email       *string
	Phone       *string
	DateOfBirth *string
}
