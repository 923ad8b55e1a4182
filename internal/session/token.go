package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether the bearer token's embedded expiry is in
// the past by the local clock. The token is decoded without signature
// verification; only the server can vouch for validity, this is a fast
// client-side gate. A token that cannot be decoded, or that carries no
// expiry claim, counts as expired.
func TokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return exp.Before(time.Now())
}
