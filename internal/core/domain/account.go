package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEmail indicates the supplied email fails format validation.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidUsername indicates the supplied username fails format validation.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrEmptyPasswordHash indicates an account was built without a stored hash.
	ErrEmptyPasswordHash = errors.New("password hash is empty")
)

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,64}$`)
)

const maxEmailLength = 320

// Email is a validated email address. Construct through NewEmail only.
type Email struct {
	value string
}

// NewEmail validates and wraps an email address.
func NewEmail(raw string) (Email, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxEmailLength || !emailPattern.MatchString(raw) {
		return Email{}, ErrInvalidEmail
	}
	return Email{value: raw}, nil
}

func (e Email) String() string { return e.value }

// Equals compares addresses case-insensitively by value.
func (e Email) Equals(other Email) bool {
	return strings.EqualFold(e.value, other.value)
}

// Username is a validated account name. Construct through NewUsername only.
type Username struct {
	value string
}

// NewUsername validates and wraps a username.
func NewUsername(raw string) (Username, error) {
	raw = strings.TrimSpace(raw)
	if !usernamePattern.MatchString(raw) {
		return Username{}, ErrInvalidUsername
	}
	return Username{value: raw}, nil
}

func (u Username) String() string { return u.value }

// Equals compares usernames case-insensitively by value.
func (u Username) Equals(other Username) bool {
	return strings.EqualFold(u.value, other.value)
}

// PasswordHash wraps a stored one-way hash. The core never inspects the
// encoding; verification is delegated to the security package.
type PasswordHash struct {
	value string
}

// NewPasswordHash wraps a non-empty stored hash.
func NewPasswordHash(raw string) (PasswordHash, error) {
	if strings.TrimSpace(raw) == "" {
		return PasswordHash{}, ErrEmptyPasswordHash
	}
	return PasswordHash{value: raw}, nil
}

func (p PasswordHash) String() string { return p.value }

// Account is the read-only view of the user aggregate consumed by the
// authentication core. The core never mutates account state.
type Account struct {
	ID           string
	Email        Email
	Username     Username
	PasswordHash PasswordHash
	Roles        []string
}

// NewAccount assembles an account view, validating each owned value.
func NewAccount(id, email, username, passwordHash string, roles []string) (Account, error) {
	if strings.TrimSpace(id) == "" {
		return Account{}, fmt.Errorf("account id is required")
	}

	addr, err := NewEmail(email)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", id, err)
	}
	name, err := NewUsername(username)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", id, err)
	}
	hash, err := NewPasswordHash(passwordHash)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", id, err)
	}

	copied := make([]string, len(roles))
	copy(copied, roles)

	return Account{
		ID:           id,
		Email:        addr,
		Username:     name,
		PasswordHash: hash,
		Roles:        copied,
	}, nil
}
