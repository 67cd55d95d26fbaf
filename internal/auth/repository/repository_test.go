package repository

import (
	"testing"

	authdomain "fxjournal-backend/internal/auth/domain"
	"fxjournal-backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, "file::memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestUserRepository_EmailIsCaseInsensitive(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	user := &authdomain.User{Email: " Alice@Example.com ", Name: "Alice"}
	require.NoError(t, repo.Create(user))
	assert.Equal(t, "alice@example.com", user.Email)

	found, err := repo.FindByEmail("ALICE@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)

	missing, err := repo.FindByEmail("bob@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_UpdateMailbox(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	user := &authdomain.User{Email: "a@example.com"}
	require.NoError(t, repo.Create(user))

	user.MailProvider = authdomain.MailProviderGmail
	user.AccessToken = "ya29.token"
	require.NoError(t, repo.Update(user))

	found, err := repo.FindByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.HasMailbox())
}

func TestFCMTokenRepository(t *testing.T) {
	repo := NewFCMTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveToken("u1", "tok-a", "chrome"))
	require.NoError(t, repo.SaveToken("u1", "tok-b", "android"))
	// re-registering moves the device to the new account
	require.NoError(t, repo.SaveToken("u2", "tok-b", "android"))

	tokens, err := repo.TokensForUser("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-a"}, tokens)

	require.NoError(t, repo.DeleteUserToken("u2", "tok-a"))
	tokens, _ = repo.TokensForUser("u1")
	assert.Len(t, tokens, 1)

	require.NoError(t, repo.DeleteTokens([]string{"tok-a", "tok-b"}))
	tokens, _ = repo.TokensForUser("u1")
	assert.Empty(t, tokens)
	tokens, _ = repo.TokensForUser("u2")
	assert.Empty(t, tokens)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("secret123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
