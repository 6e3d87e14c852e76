package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"paper-trader/ledger"
	"paper-trader/models"
)

// Service handles registration and credential checks. Passwords are
// stored only as bcrypt hashes; new accounts start with a configured
// cash balance.
type Service struct {
	repo         ledger.Repository
	startingCash decimal.Decimal
}

// NewService creates an auth service backed by repo. startingCash is
// credited to every new account.
func NewService(repo ledger.Repository, startingCash decimal.Decimal) *Service {
	return &Service{repo: repo, startingCash: startingCash}
}

// Register creates a new account. Usernames are unique and compared
// case-sensitively, so "Alice" and "alice" are distinct accounts.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (uint, error) {
	if username == "" || password == "" {
		return 0, &ledger.ValidationError{Message: "username and password are required"}
	}
	if password != confirmation {
		return 0, ledger.ErrPasswordMismatch
	}

	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return 0, ledger.ErrUsernameTaken
	} else if !errors.Is(err, ledger.ErrUserNotFound) {
		return 0, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	// the store's unique index catches a concurrent duplicate
	return s.repo.CreateUser(ctx, models.User{
		Username:     username,
		PasswordHash: string(hash),
		Cash:         s.startingCash,
	})
}

// Authenticate verifies a username/password pair. An unknown username
// and a wrong password both return ErrInvalidCredentials, so a caller
// cannot tell which check failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (uint, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ledger.ErrUserNotFound) {
		return 0, ledger.ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return 0, ledger.ErrInvalidCredentials
	}
	return user.ID, nil
}

// CheckUsername reports whether a username is still available.
func (s *Service) CheckUsername(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}
	_, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, ledger.ErrUserNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return false, nil
}
