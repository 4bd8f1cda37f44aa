package relay

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Join tokens are HMAC-signed jwts naming the session they admit.
// They gate joining only; once admitted, a connection is a full
// session member.

func MintJoinToken(key []byte, sessionName string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"session": sessionName,
		"iat":     gojwt.NewNumericDate(now),
		"exp":     gojwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(key)
}

// VerifyJoinToken checks the signature and expiry and returns the
// session the token admits.
func VerifyJoinToken(key []byte, tokenStr string) (string, error) {
	token, err := gojwt.Parse(
		tokenStr,
		func(token *gojwt.Token) (any, error) {
			return key, nil
		},
		gojwt.WithValidMethods([]string{"HS256"}),
		gojwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sessionName, ok := claims["session"].(string)
	if !ok || sessionName == "" {
		return "", fmt.Errorf("token missing session")
	}
	return sessionName, nil
}
