package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in token claims. The admission core trusts these; issuing
// them is the identity provider's job.
const (
	RoleAdmin    = "admin"
	RoleSecurity = "security"
	RoleUser     = "user"
)

// Identity is the verified caller handed to handlers through the request
// context.
type Identity struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// ParseIdentity verifies the token signature against the shared HMAC secret
// and extracts the subject and role claims.
func ParseIdentity(tokenString, secret string) (*Identity, error) {
	if tokenString == "" {
		return nil, errors.New("empty token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return identityFromClaims(map[string]interface{}(claims))
}

func identityFromClaims(claims map[string]interface{}) (*Identity, error) {
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, errors.New("subject claim not found in token")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("subject claim is not a user id: %w", err)
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleUser
	}

	return &Identity{UserID: userID, Role: role}, nil
}
