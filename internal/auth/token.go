// Package auth verifies the credential presented when a connection or
// request is opened and issues credentials for the account endpoints.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-chatgateway/internal/types"
)

const (
	DefaultTokenTTL = 7 * 24 * time.Hour
	issuer          = "go-chatgateway"
)

var ErrUnauthorized = errors.New("unauthorized")

type Claims struct {
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	jwt.StandardClaims
}

type Verifier struct {
	signingKey []byte
	now        func() time.Time
}

func NewVerifier(signingKey []byte) *Verifier {
	return &Verifier{
		signingKey: signingKey,
		now:        time.Now,
	}
}

// Issue signs a credential for id that expires after ttl.
func (v *Verifier) Issue(id types.Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(id.Username) == "" {
		return "", fmt.Errorf("issue token: empty username")
	}

	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:  id.Username,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	})

	return token.SignedString(v.signingKey)
}

// Verify checks the signature and expiry of credential and returns the
// identity it carries. Every failure wraps ErrUnauthorized.
func (v *Verifier) Verify(credential string) (types.Identity, error) {
	if credential == "" {
		return types.Identity{}, fmt.Errorf("%w: missing credential", ErrUnauthorized)
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if !token.Valid {
		return types.Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	if claims.ExpiresAt == 0 {
		return types.Identity{}, fmt.Errorf("%w: token has no expiry", ErrUnauthorized)
	}

	if strings.TrimSpace(claims.Username) == "" {
		return types.Identity{}, fmt.Errorf("%w: missing username claim", ErrUnauthorized)
	}

	return types.Identity{
		Username:  claims.Username,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}, nil
}
