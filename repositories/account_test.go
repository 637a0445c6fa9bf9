package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "studio-live/errors"
)

func TestAccountRepository_Store_And_Find(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewAccountRepository(db, slog.Default())

	account := Account{
		Email:        "ops@example.com",
		DisplayName:  "Ops",
		PasswordHash: "$argon2id$...",
		Roles:        []string{"operator"},
	}
	req.NoError(repo.Store(account))

	found, err := repo.FindByEmail("ops@example.com")
	req.NoError(err)
	req.Equal(account, found)
}

func TestAccountRepository_Find_Unknown(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewAccountRepository(db, slog.Default())

	_, err := repo.FindByEmail("nobody@example.com")
	req.ErrorIs(err, apperrors.ErrUserUnknown)
}
