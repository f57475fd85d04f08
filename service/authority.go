package service

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/model"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// RegisterAuthority hashes password and stores a new authority
func (s *Store) RegisterAuthority(a model.Authority, password string) (*model.Authority, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.CreateAuthority(a, hash)
}

// Authenticate checks a username and password against the stored hash
func (s *Store) Authenticate(username, password string) (*model.Authority, error) {
	a, hash := s.FindAuthorityByUsername(username)
	if a == nil || len(hash) == 0 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// SeedAuthorities registers the configured reviewers, skipping any that
// already exist.
func (s *Store) SeedAuthorities(seeds []config.Authority) error {
	for _, seed := range seeds {
		_, err := s.RegisterAuthority(model.Authority{
			Username:      seed.Username,
			Name:          seed.Name,
			Department:    seed.Department,
			WalletAddress: seed.Wallet,
		}, seed.Password)
		switch {
		case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrWalletTaken):
			slog.Warn("skipping duplicate seeded authority", "username", seed.Username, "error", err)
		case err != nil:
			return fmt.Errorf("seed authority %s: %w", seed.Username, err)
		default:
			slog.Info("seeded authority", "username", seed.Username)
		}
	}
	return nil
}
