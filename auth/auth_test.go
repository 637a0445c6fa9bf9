package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio-live/errors"
)

func TestHashPassword_And_Compare(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3r$ecretPass!")
	req.NoError(err)
	req.Contains(hash, "$argon2id$")

	match, err := ComparePassword("Sup3r$ecretPass!", hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong-password", hash)
	req.NoError(err)
	req.False(match)
}

func TestHashPassword_Unique_Salts(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("Sup3r$ecretPass!")
	req.NoError(err)
	second, err := HashPassword("Sup3r$ecretPass!")
	req.NoError(err)

	req.NotEqual(first, second)
}

func TestComparePassword_Rejects_Malformed_Hash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-a-hash")
	req.Error(err)
}

func TestTokenIssuer_Roundtrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer([]byte("test-signing-key"), time.Hour)

	token, err := issuer.Generate("ops@example.com", []string{"operator"})
	req.NoError(err)

	claims, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("ops@example.com", claims.UserID)
	req.Equal([]string{"operator"}, claims.Roles)
	req.Equal("studio-live", claims.Issuer)
}

func TestTokenIssuer_Rejects_Wrong_Key(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer([]byte("test-signing-key"), time.Hour)
	other := NewTokenIssuer([]byte("another-key"), time.Hour)

	token, err := issuer.Generate("ops@example.com", nil)
	req.NoError(err)

	_, err = other.Validate(token)
	req.Error(err)
}

func TestTokenIssuer_Rejects_Expired(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer([]byte("test-signing-key"), -time.Minute)

	token, err := issuer.Generate("ops@example.com", nil)
	req.NoError(err)

	_, err = issuer.Validate(token)
	req.Error(err)
}

func TestValidateRegister_Password_Complexity(t *testing.T) {
	req := require.New(t)

	base := RegisterRequest{
		Email:       "ops@example.com",
		DisplayName: "Ops",
	}

	base.Password = "Sup3r$ecretPass!"
	req.NoError(ValidateRegister(base))

	// Long enough but all lowercase
	base.Password = "alllowercasepassword"
	req.ErrorIs(ValidateRegister(base), errors.ErrInvalidPassword)

	// Complex but too short
	base.Password = "Ab1$"
	req.Error(ValidateRegister(base))
}

func TestValidateLogin_Requires_Email(t *testing.T) {
	req := require.New(t)

	err := ValidateLogin(LoginRequest{Email: "not-an-email", Password: "Sup3r$ecretPass!"})
	req.Error(err)
}
