package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/rental-checkout/internal/models"
)

var ErrNoToken = errors.New("no bearer token")

// Claims carries the profile fields the identity provider puts in its tokens.
type Claims struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	jwt.RegisteredClaims
}

// JWTResolver turns a bearer token into an Identity. Requests without a
// valid token are anonymous.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve returns the caller's identity and, when authenticated, the raw
// token so it can be forwarded to the backend.
func (j *JWTResolver) Resolve(r *http.Request) (models.Identity, string, error) {
	raw, err := bearer(r)
	if err != nil {
		return models.Identity{}, "", err
	}
	if len(j.secret) == 0 {
		return models.Identity{}, "", errors.New("jwt secret not configured")
	}
	claims := &Claims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, "", err
	}
	return models.Identity{
		Authenticated: true,
		UserID:        claims.Subject,
		Profile: models.ContactInfo{
			FullName:    claims.Name,
			Email:       claims.Email,
			PhoneNumber: claims.PhoneNumber,
		},
	}, raw, nil
}

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(parts[1]), nil
}
