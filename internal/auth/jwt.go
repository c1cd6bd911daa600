package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTTL = 30 * 24 * time.Hour
	stateTTL = 10 * time.Minute

	appIssuer        = "studysync"
	stateIssuer      = "studysync-oauth"
	supabaseAudience = "authenticated"
	stateAudience    = "oauth-state"
)

var ErrInvalidToken = errors.New("invalid token")

func GenerateToken(secret []byte, userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    appIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// ParseToken validates an app token and returns its user id.
func ParseToken(secret []byte, tokenString string) (string, error) {
	return parseSubject(secret, tokenString, jwt.WithIssuer(appIssuer))
}

// ParseSupabaseToken validates a Supabase Auth access token. Supabase signs
// them with the project JWT secret and puts the user id in "sub".
func ParseSupabaseToken(secret []byte, tokenString string) (string, error) {
	return parseSubject(secret, tokenString, jwt.WithAudience(supabaseAudience))
}

// generateState signs the OAuth state parameter so the callback can be
// checked without server-side storage.
func generateState(secret []byte, nonce string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    stateIssuer,
		Subject:   nonce,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func verifyState(secret []byte, state string) error {
	_, err := parseSubject(secret, state, jwt.WithIssuer(stateIssuer), jwt.WithAudience(stateAudience))
	return err
}

func parseSubject(secret []byte, tokenString string, opts ...jwt.ParserOption) (string, error) {
	if len(secret) == 0 || tokenString == "" {
		return "", ErrInvalidToken
	}

	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
