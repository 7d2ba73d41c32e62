package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by the API's token issuer. The long forms are the
// WS-Federation URIs emitted by .NET identity; the short forms are JWT defaults.
const (
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	claimEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	claimRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

var (
	idClaims    = []string{"sub", "id", "nameid", "userId", claimNameIdentifier}
	nameClaims  = []string{"name", "unique_name", "given_name", claimName}
	emailClaims = []string{"email", claimEmail}
	roleClaims  = []string{"role", "roles", claimRole}
)

// ErrNoIdentity is returned when a token carries no user id claim
var ErrNoIdentity = errors.New("token has no user identity claim")

// parseUnverified decodes the claims of an access token. The signature is not
// checked: the client never holds the signing key, the API verifies it.
func parseUnverified(token string) (jwt.MapClaims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	return claims, nil
}

// ClaimsFromToken extracts the user identity carried by an access token
func ClaimsFromToken(token string) (*User, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:    UserID(firstClaim(claims, idClaims)),
		Name:  firstClaim(claims, nameClaims),
		Email: firstClaim(claims, emailClaims),
		Roles: claimValues(claims, roleClaims),
	}
	if len(user.Roles) > 0 {
		user.Role = user.Roles[0]
	}
	if len(user.Roles) < 2 {
		user.Roles = nil
	}
	if user.ID == "" {
		return nil, ErrNoIdentity
	}
	if user.Name == "" {
		user.Name = user.Email
	}

	return user, nil
}

// TokenExpiry returns the exp claim of a token, or the zero time when absent
func TokenExpiry(token string) (time.Time, error) {
	claims, err := parseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// firstClaim returns the first non-empty claim among keys. Numeric claims are
// formatted without a fraction; array claims yield their first string element.
func firstClaim(claims jwt.MapClaims, keys []string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// claimValues returns every non-empty string of the first present claim among
// keys. A single string claim yields one value.
func claimValues(claims jwt.MapClaims, keys []string) []string {
	for _, key := range keys {
		var values []string
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				values = append(values, v)
			}
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					values = append(values, s)
				}
			}
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}
