package crypto

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidSigningAlg     = errors.New("invalid-signing-alg")
	ErrExpiredToken          = errors.New("expired-token")
	ErrInvalidTokenSignature = errors.New("invalid-token-signature")
	ErrCorruptedToken        = errors.New("corrupted-token")
	ErrTokenVerification     = errors.New("unexpected-token-verification-error")
)

// accountClaims is what the account service puts in the tokens it
// issues. This server only ever reads them back.
type accountClaims struct {
	AccountID string `json:"accountId"`
	jwt.RegisteredClaims
}

// JWTManager verifies account tokens minted elsewhere with the shared
// HMAC key; this service has no issuance path of its own.
type JWTManager struct {
	secretKey []byte
}

func NewJWTManager(secretKey []byte) *JWTManager {
	return &JWTManager{secretKey: secretKey}
}

// Verify resolves a token to the account id it was issued for.
func (m *JWTManager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accountClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlg
		}
		return m.secretKey, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSigningAlg):
			return "", err
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpiredToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return "", ErrInvalidTokenSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrCorruptedToken
		default:
			return "", fmt.Errorf("%w: %w", ErrTokenVerification, err)
		}
	}

	if claims, ok := token.Claims.(*accountClaims); ok && token.Valid {
		return claims.AccountID, nil
	}

	return "", ErrCorruptedToken
}
