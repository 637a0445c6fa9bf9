package repositories

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	apperrors "studio-live/errors"
)

// Account is an operator login for the admin dashboard.
type Account struct {
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
}

type IAccountRepository interface {
	Store(account Account) error
	FindByEmail(email string) (Account, error)
}

type AccountRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewAccountRepository(db *badger.DB, log *slog.Logger) AccountRepository {
	return AccountRepository{db: db, log: log}
}

func accountKey(email string) []byte { return []byte("acct:" + email) }

func (a AccountRepository) Store(account Account) error {
	bytes, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(accountKey(account.Email), bytes)
	})
}

func (a AccountRepository) FindByEmail(email string) (Account, error) {
	var account Account
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return apperrors.ErrUserUnknown
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &account)
		})
	})
	return account, err
}
