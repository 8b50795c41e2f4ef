// internal/auth/auth.go
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/christopher-kapic/solved-problems-mcp/internal/logger"
)

var (
	ErrBadRequest              = errors.New("bad request")
	ErrTokenMalformed          = errors.New("malformed token")
	ErrTokenExpired            = errors.New("token is expired or not valid yet")
	ErrTokenInvalid            = errors.New("invalid token")
	ErrTokenClaimsInvalid      = errors.New("invalid token claims")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrAPIKeyGeneration        = errors.New("failed to generate api key components")
	ErrUnexpectedSigningMethod = errors.New("unexpected token signing method")
	customLog                  = logger.NewLogger()
)

// APIKeyPrefix marks a credential as an API key rather than a session token.
const APIKeyPrefix = "sp_"
const apiKeySecretLength = 32 // random secret bytes per key

// Principal identifies the caller of an operation. A session principal has an
// empty APIKeyID; an API-key principal carries the key id so downstream access
// checks use the key's explicit grants rather than the owning user's access.
type Principal struct {
	UserID   string
	Role     string
	APIKeyID string
}

// IsAPIKey reports whether the principal came from a bearer API key.
func (p Principal) IsAPIKey() bool {
	return p.APIKeyID != ""
}

// CustomClaims includes standard claims plus our user id and role claims.
type CustomClaims struct {
	UserID string `json:"userID"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// --- Password Utilities ---

// HashPassword generates a bcrypt hash for the given password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		customLog.Warnf("Error generating bcrypt hash: %v", err)
		// Don't return raw bcrypt error to caller usually
		return "", fmt.Errorf("failed to hash password")
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plaintext password with a stored bcrypt hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	// Log unexpected errors, but return false for mismatch or other errors
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		customLog.Warnf("Unexpected error comparing password hash: %v", err)
	}
	return err == nil
}

// --- API Key Utilities ---

// GenerateAPIKey creates a new plaintext API key ("sp_" + hex secret).
// The plaintext is returned exactly once; only its hash is ever stored.
func GenerateAPIKey() (string, error) {
	randomBytes := make([]byte, apiKeySecretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		customLog.Warnf("Error generating random bytes for API key: %v", err)
		return "", ErrAPIKeyGeneration
	}
	return APIKeyPrefix + hex.EncodeToString(randomBytes), nil
}

// HashAPIKey computes the one-way hash under which a key is stored and looked
// up. Keys are high-entropy, so a fast hash is the right tool here; bcrypt
// would make lookup-by-hash impossible.
func HashAPIKey(plainKey string) string {
	sum := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(sum[:])
}

// --- JWT Utilities ---

// GenerateJWT creates a signed JWT string for a given user id and role
func GenerateJWT(userID, role, jwtSecret string, jwtExpiration time.Duration) (string, error) {
	claims := CustomClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "solved-problems",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedToken, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		customLog.Warnf("Error signing JWT for user %s: %v", userID, err)
		return "", fmt.Errorf("failed to generate token") // Generic error
	}

	return signedToken, nil
}

// ValidateJWT parses and validates a JWT string, returning the session
// principal if valid.
func ValidateJWT(tokenString, jwtSecret string) (Principal, error) {
	claims := &CustomClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Check the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			customLog.Warnf("ValidateJWT: Unexpected signing method: %v", token.Header["alg"])
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigningMethod, token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})

	// Handle parsing errors, mapping library errors to our defined errors
	if err != nil {
		customLog.Warnf("ValidateJWT: Token parsing error: %v", err)
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return Principal{}, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return Principal{}, ErrTokenExpired
		case errors.Is(err, ErrUnexpectedSigningMethod):
			return Principal{}, err
		default:
			return Principal{}, ErrTokenInvalid
		}
	}

	if !token.Valid {
		customLog.Warnf("ValidateJWT: Invalid token marked by library")
		return Principal{}, ErrTokenInvalid
	}

	if claims.UserID == "" {
		customLog.Warnf("ValidateJWT: UserID missing or invalid in token claims")
		return Principal{}, ErrTokenClaimsInvalid
	}

	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}
