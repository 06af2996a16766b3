package auth

import (
	"testing"

	"vaultshare-backend/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func TestVerifyUser_Nil(t *testing.T) {
	u, err := VerifyUser(nil)
	assert.Nil(t, u)
	assert.Equal(t, ErrNotAuthenticated, err)
}

func TestVerifyUser_NoUserID(t *testing.T) {
	u, err := VerifyUser(map[string]interface{}{
		"name":  "Test",
		"email": "a@b.com",
	})
	assert.Nil(t, u)
	assert.Equal(t, ErrNotAuthenticated, err)
}

func TestVerifyUser_Valid(t *testing.T) {
	u, err := VerifyUser(map[string]interface{}{
		"user_id": "550e8400-e29b-41d4-a716-446655440000",
		"name":    "Test User",
		"email":   "test@example.com",
	})
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", u.UserID)
	assert.Equal(t, "Test User", u.Name)
	assert.Equal(t, "test@example.com", u.Email)
}

func TestRegisterThenLogin(t *testing.T) {
	db := setupAuthDB(t)

	u, err := Register(db, RegisterInput{Name: "Ada", Email: " Ada@Example.com ", Password: "s3cret!pass"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "s3cret!pass", u.PasswordHash)

	got, err := LoginUser(db, LoginInput{Email: "ada@example.com", Password: "s3cret!pass"})
	require.NoError(t, err)
	assert.Equal(t, u.UserID, got.UserID)

	_, err = LoginUser(db, LoginInput{Email: "ada@example.com", Password: "wrong!pass1"})
	assert.Equal(t, ErrIncorrectPassword, err)

	_, err = LoginUser(db, LoginInput{Email: "nobody@example.com", Password: "s3cret!pass"})
	assert.Equal(t, ErrInvalidEmail, err)
}

func TestRegister_Rejects(t *testing.T) {
	db := setupAuthDB(t)
	_, err := Register(db, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret!pass"})
	require.NoError(t, err)

	_, err = Register(db, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "s3cret!pass"})
	assert.Equal(t, ErrEmailTaken, err)

	_, err = Register(db, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "short"})
	assert.Equal(t, ErrWeakPassword, err)

	_, err = Register(db, RegisterInput{Name: "", Email: "bob@example.com", Password: "s3cret!pass"})
	assert.Equal(t, ErrNameRequired, err)

	_, err = Register(db, RegisterInput{Name: "Bob", Email: "", Password: ""})
	assert.Equal(t, ErrEmailPasswordRequired, err)
}
