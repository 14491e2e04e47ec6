package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"doc-sync/domain"
	"doc-sync/errors"
)

// jwtKey is the secret used to sign and verify tokens.
// In a production environment, this should be loaded from an environment variable or a secret manager.
var jwtKey = []byte("doc_sync_strong_and_long_secret_key_2026")

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
// Token issuance endpoints are out of scope for this service; this helper
// exists for the seeding tool and for tests that need a valid credential.
func GenerateToken(userID domain.UserID, tokenDuration time.Duration) (string, error) {
	expirationTime := time.Now().Add(tokenDuration)

	claims := &CustomClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "doc-sync",
		},
	}

	// HS256 (HMAC with SHA256), signed with the server's secret key.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// Verifier adapts token validation to the contract.ITokenVerifier capability
// consumed by the connection handler.
type Verifier struct{}

func (Verifier) Verify(tokenString string) (domain.UserID, error) {
	claims, err := ValidateToken(tokenString)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", errors.ErrAuthenticationFailed)
	}
	return userID, nil
}
