package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/toolgate/toolgate/internal/config"
)

// Errors returned by operator login.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("login is not configured")
)

// Operator is the single API account declared in configuration. An empty
// username disables the login endpoint entirely.
type Operator struct {
	username     string
	passwordHash string
}

// NewOperator builds the operator account from the auth config section.
func NewOperator(cfg config.AuthConfig) *Operator {
	return &Operator{
		username:     strings.TrimSpace(cfg.Username),
		passwordHash: strings.TrimSpace(cfg.PasswordHash),
	}
}

// Enabled reports whether an operator account is configured.
func (o *Operator) Enabled() bool {
	return o.username != "" && o.passwordHash != ""
}

// Login verifies the credentials against the configured bcrypt hash.
func (o *Operator) Login(username, password string) error {
	if !o.Enabled() {
		return ErrLoginDisabled
	}
	if strings.TrimSpace(username) != o.username {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(o.passwordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Username returns the configured operator username.
func (o *Operator) Username() string {
	return o.username
}
