package auth

import (
	"context"
	"time"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/jwt"
)

// UserRepository is the identity store the auth service needs.
type UserRepository interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	CountByRole(ctx context.Context, role domain.UserRole) (int64, error)
	UpdateProfile(ctx context.Context, u *domain.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

type tokenIssuer interface {
	GenerateToken(id jwt.Identity) (string, time.Time, error)
}
