package auth

import (
	"log/slog"

	"studio-live/errors"
	"studio-live/repositories"
)

// Service handles operator account registration and login.
type Service struct {
	log      *slog.Logger
	accounts repositories.IAccountRepository
	issuer   TokenIssuer
}

func NewService(log *slog.Logger, accounts repositories.IAccountRepository, issuer TokenIssuer) *Service {
	return &Service{log: log, accounts: accounts, issuer: issuer}
}

// Register creates an operator account with a hashed password.
func (s *Service) Register(req RegisterRequest) error {
	if err := ValidateRegister(req); err != nil {
		return err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return err
	}
	return s.accounts.Store(repositories.Account{
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: hash,
		Roles:        []string{"operator"},
	})
}

// Login checks credentials and returns a signed dashboard token. Unknown
// accounts and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(req LoginRequest) (string, error) {
	if err := ValidateLogin(req); err != nil {
		return "", err
	}
	account, err := s.accounts.FindByEmail(req.Email)
	if err != nil {
		s.log.Debug("Login for unknown account", "email", req.Email)
		return "", errors.ErrInvalidCredentials
	}
	match, err := ComparePassword(req.Password, account.PasswordHash)
	if err != nil {
		return "", err
	}
	if !match {
		return "", errors.ErrInvalidCredentials
	}
	return s.issuer.Generate(account.Email, account.Roles)
}

// ValidateToken exposes token validation to the API middleware.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.issuer.Validate(token)
}
