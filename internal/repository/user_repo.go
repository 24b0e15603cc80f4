package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"roombooking/internal/domain"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Username     string     `gorm:"column:username;size:100;not null;uniqueIndex"`
	Email        string     `gorm:"column:email;size:100;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	FullName     string     `gorm:"column:full_name;size:50;not null"`
	Role         string     `gorm:"column:role;size:16;not null;default:User"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	LastLogin    *time.Time `gorm:"column:last_login"`
}

func (userModel) TableName() string { return "users" }

func toDomainUser(m userModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FullName:     m.FullName,
		Role:         domain.UserRole(m.Role),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt.UTC(),
		LastLogin:    utcPtr(m.LastLogin),
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Username:     strings.TrimSpace(u.Username),
		Email:        strings.TrimSpace(strings.ToLower(u.Email)),
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		Role:         string(u.Role),
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		LastLogin:    u.LastLogin,
	}
}

func (r *UserRepository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	db, _ := conn(ctx, r.db)
	m := toUserModel(u)
	if err := db.Create(&m).Error; err != nil {
		return translateError(err)
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db, _ := conn(ctx, r.db)
	var m userModel
	if err := db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return toDomainUser(m), nil
}

// GetByLogin finds a user whose username or email equals login, ignoring case.
func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	db, _ := conn(ctx, r.db)
	key := strings.ToLower(strings.TrimSpace(login))

	var m userModel
	err := db.Where("LOWER(username) = ? OR LOWER(email) = ?", key, key).
		Order("id").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return toDomainUser(m), nil
}

// UsernameTaken reports whether another user already has username.
func (r *UserRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)), 0)
}

// EmailTaken reports whether a user other than exceptID already has email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	return r.exists(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)), exceptID)
}

func (r *UserRepository) exists(ctx context.Context, cond string, arg any, exceptID int64) (bool, error) {
	db, _ := conn(ctx, r.db)
	q := db.Model(&userModel{}).Where(cond, arg)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *UserRepository) CountByRole(ctx context.Context, role domain.UserRole) (int64, error) {
	db, _ := conn(ctx, r.db)
	var cnt int64
	err := db.Model(&userModel{}).Where("role = ?", string(role)).Count(&cnt).Error
	return cnt, err
}

// UpdateProfile writes full name and email.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	db, _ := conn(ctx, r.db)
	tx := db.Model(&userModel{ID: u.ID}).Updates(map[string]any{
		"full_name": u.FullName,
		"email":     strings.TrimSpace(strings.ToLower(u.Email)),
	})
	if tx.Error != nil {
		return translateError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	db, _ := conn(ctx, r.db)
	tx := db.Model(&userModel{ID: id}).Update("password_hash", hash)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	db, _ := conn(ctx, r.db)
	return db.Model(&userModel{ID: id}).Update("last_login", at.UTC()).Error
}
