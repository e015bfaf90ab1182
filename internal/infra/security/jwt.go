package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/osetrov/adminpanel-auth/internal/core/domain"
	"github.com/osetrov/adminpanel-auth/internal/infra/config"
)

var (
	// ErrAccessTokenExpired indicates the token elapsed its lifetime.
	ErrAccessTokenExpired = errors.New("access token expired")
	// ErrAccessTokenInvalid indicates the token is malformed or failed
	// signature, issuer, or audience validation.
	ErrAccessTokenInvalid = errors.New("invalid access token")
)

// AccessTokenClaims augments registered claims with account context.
type AccessTokenClaims struct {
	AccountID string   `json:"uid"`
	Email     string   `json:"email,omitempty"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies HS256 access tokens with a symmetric key.
type JWTSigner struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTSigner constructs a signer from configuration. The signing key is
// mandatory; issuer and audience are embedded and enforced on parse.
func NewJWTSigner(cfg config.JWTSettings) (*JWTSigner, error) {
	key := strings.TrimSpace(cfg.SigningKey)
	if key == "" {
		return nil, fmt.Errorf("jwt signing key is required")
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("jwt signing key must be at least 32 bytes")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &JWTSigner{
		key:      []byte(key),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the signer clock for deterministic tests.
func (s *JWTSigner) WithClock(clock func() time.Time) *JWTSigner {
	if clock != nil {
		s.now = clock
	}
	return s
}

// AccessTokenTTL reports the configured access token lifetime.
func (s *JWTSigner) AccessTokenTTL() time.Duration {
	return s.ttl
}

// Sign issues a signed access token embedding the account's identifier,
// email, username, and role claims.
func (s *JWTSigner) Sign(account domain.Account) (string, error) {
	if account.ID == "" {
		return "", fmt.Errorf("account id is required")
	}

	now := s.now()

	claimAudience := jwt.ClaimStrings{}
	if s.audience != "" {
		claimAudience = append(claimAudience, s.audience)
	}

	claims := AccessTokenClaims{
		AccountID: account.ID,
		Email:     account.Email.String(),
		Username:  account.Username.String(),
		Roles:     account.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    s.issuer,
			Audience:  claimAudience,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse validates a signed access token and returns its claims.
func (s *JWTSigner) Parse(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrAccessTokenInvalid
	}

	claims := &AccessTokenClaims{}

	options := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		options = append(options, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		options = append(options, jwt.WithAudience(s.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrAccessTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrAccessTokenInvalid
	}
	if strings.TrimSpace(claims.AccountID) == "" {
		return nil, ErrAccessTokenInvalid
	}

	return claims, nil
}
