package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims defines the data stored inside the operator dashboard JWT.
type Claims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates dashboard tokens. The signing key comes
// from configuration; it is never embedded in the binary.
type TokenIssuer struct {
	key      []byte
	duration time.Duration
}

func NewTokenIssuer(key []byte, duration time.Duration) TokenIssuer {
	return TokenIssuer{key: key, duration: duration}
}

// Generate creates a signed HS256 token for a specific user.
func (t TokenIssuer) Generate(userID string, roles []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "studio-live",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.key)
}

// Validate parses the token and checks signature and expiration.
func (t TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.key, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
