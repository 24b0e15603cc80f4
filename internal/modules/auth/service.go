package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"roombooking/internal/domain"
	"roombooking/internal/pkg/jwt"
)

// Service contains all business logic for authentication
type Service struct {
	users  UserRepository
	tokens tokenIssuer
	now    func() time.Time
}

func NewService(users UserRepository, tokens tokenIssuer) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// Register creates a regular user and signs them in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	u, err := s.createUser(ctx, req, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	log.Printf("user_registered user_id=%d username=%q", u.ID, u.Username)
	return s.issue(u)
}

// CreateAdmin creates the first administrator. It fails with ErrAdminExists
// once any admin is present; the check and insert share one transaction.
func (s *Service) CreateAdmin(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var u *domain.User
	err := s.users.Transaction(ctx, func(ctx context.Context) error {
		admins, err := s.users.CountByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if admins > 0 {
			return ErrAdminExists
		}
		u, err = s.createUser(ctx, req, domain.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("admin_created user_id=%d username=%q", u.ID, u.Username)
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	u, err := s.users.GetByLogin(ctx, req.UsernameOrEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		log.Printf("login_failed user_id=%d reason=bad_password", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC().Truncate(time.Second)
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	u.LastLogin = &now

	return s.issue(u)
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile changes full name and email. The returned token carries the
// new full name, which is the display name loans are owned by.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*AuthResult, error) {
	u, err := s.GetCurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, ErrValidation
		}
		u.FullName = name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		taken, err := s.users.EmailTaken(ctx, email, u.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		u.Email = email
	}

	if err := s.users.UpdateProfile(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	u, err := s.GetCurrentUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return err
	}
	log.Printf("password_changed user_id=%d", u.ID)
	return nil
}

func (s *Service) createUser(ctx context.Context, req RegisterRequest, role domain.UserRole) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fullName := strings.TrimSpace(req.FullName)
	if username == "" || email == "" || fullName == "" || req.Password == "" {
		return nil, ErrValidation
	}

	taken, err := s.users.UsernameTaken(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}
	taken, err = s.users.EmailTaken(ctx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	u := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) issue(u *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokens.GenerateToken(jwt.Identity{
		UserID:   u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		FullName: u.FullName,
	})
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
