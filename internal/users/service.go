package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort abstracts the store for the service.
type RepositoryPort interface {
	Create(ctx context.Context, user User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, activeOnly bool) ([]User, error)
	SetRate(ctx context.Context, id string, rate float64) error
}

// Service coordinates user registry operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds the service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput collects the fields needed to register a user.
type CreateInput struct {
	FirstName      string
	LastName       string
	Email          string
	Role           Role
	HourlyCostRate float64
	Password       string
}

// Create registers a user with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	if !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: %s", ErrInvalidRole, in.Role)
	}
	if in.HourlyCostRate < 0 {
		return User{}, errors.New("users: hourly cost rate must be non-negative")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	user := User{
		ID:             uuid.NewString(),
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Role:           in.Role,
		HourlyCostRate: in.HourlyCostRate,
		Active:         true,
		PasswordHash:   string(hash),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, user.ID)
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.Get(ctx, id)
}

// List enumerates users.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]User, error) {
	return s.repo.List(ctx, activeOnly)
}

// SetRate updates the hourly cost rate used for labor aggregation.
func (s *Service) SetRate(ctx context.Context, id string, rate float64) (User, error) {
	if rate < 0 {
		return User{}, errors.New("users: hourly cost rate must be non-negative")
	}
	if err := s.repo.SetRate(ctx, id, rate); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Authenticate checks credentials against the stored bcrypt hash.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrNotFound
	}
	return user, nil
}
