package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired is returned when a token's signature is valid but exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned when a token is malformed, unsigned, or signed with the wrong key.
	ErrTokenInvalid = errors.New("invalid token")
)

// Token type tags embedded in the "type" claim. An access token presented
// where a refresh token is expected (or vice versa) must be rejected.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Claims holds the JWT claims carried by both token types: subject (user id),
// session id, jti, and the type tag.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	TokenType string `json:"type"`
}

// TokenProvider issues and verifies HS256 JWTs against a server-held secret
// shared by all service instances. It is stateless; current validity of a
// token beyond its own expiry is the session manager's concern.
type TokenProvider struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given secret.
func NewTokenProvider(secret []byte, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT for the given user and session.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueAccess(userID, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	return p.issue(userID, sessionID, TokenTypeAccess, p.accessTTL)
}

// IssueRefresh issues a long-lived refresh JWT for the given user and session.
// Returns the token string, its jti, and expiration time. The caller stores
// the jti on the session so rotation can retire it.
func (p *TokenProvider) IssueRefresh(userID, sessionID string) (token, jti string, expiresAt time.Time, err error) {
	return p.issue(userID, sessionID, TokenTypeRefresh, p.refreshTTL)
}

func (p *TokenProvider) issue(userID, sessionID, tokenType string, ttl time.Duration) (string, string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		TokenType: tokenType,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := t.SignedString(p.secret)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// Verify parses tokenString, checks the HS256 signature and exp, and returns
// the decoded claims. Returns ErrTokenExpired when the signature is valid but
// the token has expired, ErrTokenInvalid for every other failure.
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
