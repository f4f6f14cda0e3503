package utils // package utils provides helpers for issuing operator tokens

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Operator roles carried in the "role" claim.
const (
	RoleOperator = "OPERATOR" // may record, correct and delete payments
	RoleViewer   = "VIEWER"   // read-only access
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs an HS256 JWT for an operator.  The token carries sub,
// role, exp and iat claims.
func NewAccessToken(secret, operator, role string, ttl time.Duration) (AccessToken, error) {
	if strings.TrimSpace(operator) == "" {
		return AccessToken{}, errors.New("operator is required")
	}
	if role != RoleOperator && role != RoleViewer {
		return AccessToken{}, errors.New("unknown role: " + role)
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  operator,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
