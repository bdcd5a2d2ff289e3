package user

import (
	"context"
	"errors"
	"fmt"
)

// Service contains business logic for user management.
type Service struct {
	repo *Repository
}

// NewService creates a new user Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Create provisions a new account with the given byte budget.
func (s *Service) Create(ctx context.Context, email, passwordHash string, storageLimit int64) (*User, error) {
	u, err := s.repo.Create(ctx, email, passwordHash, storageLimit)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetByID returns a user by their UUID.
func (s *Service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByEmail returns a user by their email address.
func (s *Service) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.GetByEmail(ctx, email)
}

// IsNotFound returns true when the error indicates a user was not found.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
