package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"roombooking/internal/domain"
)

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	u := &domain.User{
		Username:     "Alice",
		Email:        " Alice@Example.com ",
		PasswordHash: "hash",
		FullName:     "Alice Liddell",
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, repo.Create(ctx, u))
	require.NotZero(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)

	byName, err := repo.GetByLogin(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	byEmail, err := repo.GetByLogin(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	_, err = repo.GetByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	taken, err := repo.UsernameTaken(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.EmailTaken(ctx, "ALICE@example.com", u.ID)
	require.NoError(t, err)
	assert.False(t, taken, "own email is not taken")
	taken, err = repo.EmailTaken(ctx, "ALICE@example.com", 0)
	require.NoError(t, err)
	assert.True(t, taken)

	admins, err := repo.CountByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, admins)

	u.FullName = "Alice L."
	u.Email = "al@example.com"
	require.NoError(t, repo.UpdateProfile(ctx, u))
	require.NoError(t, repo.UpdatePassword(ctx, u.ID, "hash2"))
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.TouchLastLogin(ctx, u.ID, at))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", got.FullName)
	assert.Equal(t, "al@example.com", got.Email)
	assert.Equal(t, "hash2", got.PasswordHash)
	require.NotNil(t, got.LastLogin)
	assert.True(t, got.LastLogin.Equal(at))
	assert.True(t, got.IsActive)

	assert.ErrorIs(t, repo.UpdatePassword(ctx, 999, "x"), gorm.ErrRecordNotFound)
}
