package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/infra/security"
	"github.com/osetrov/adminpanel-auth/internal/usecase"
)

// TokenParser validates bearer tokens presented to protected routes.
type TokenParser interface {
	ParseAccessToken(token string) (*security.AccessTokenClaims, error)
}

// LockoutChecker re-checks lockout state for already authenticated requests.
type LockoutChecker interface {
	CheckLockout(ctx context.Context, accountID string) error
}

type authErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// RequireAuth validates the Authorization bearer token and stores its claims
// in the request context. An account locked after its access token was
// issued is rejected with 403, so a valid token does not outlive the lock.
func RequireAuth(parser TokenParser, lockouts LockoutChecker, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "missing bearer token", "")
			return
		}

		claims, err := parser.ParseAccessToken(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, usecase.ErrExpiredAccessToken) {
				abortUnauthorized(c, "access token expired", "token_expired")
				return
			}
			abortUnauthorized(c, "invalid access token", "")
			return
		}

		if lockouts != nil {
			if err := lockouts.CheckLockout(c.Request.Context(), claims.AccountID); err != nil {
				if errors.Is(err, usecase.ErrAccountLocked) {
					c.AbortWithStatusJSON(http.StatusForbidden, authErrorBody{
						Error:   "account is locked",
						Code:    "account_locked",
						TraceID: GetTraceID(c),
					})
					return
				}
				log.Error("lockout re-check failed",
					zap.String("account_id", claims.AccountID),
					zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, authErrorBody{
					Error:   "internal error",
					TraceID: GetTraceID(c),
				})
				return
			}
		}

		c.Set(AccountIDKey, claims.AccountID)
		c.Set("access_claims", claims)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.AccountID = claims.AccountID
		}

		c.Next()
	}
}

// GetAccessClaims retrieves the validated claims stored by RequireAuth.
func GetAccessClaims(c *gin.Context) (*security.AccessTokenClaims, bool) {
	value, exists := c.Get("access_claims")
	if !exists {
		return nil, false
	}
	claims, ok := value.(*security.AccessTokenClaims)
	return claims, ok
}

// RequireRole allows only accounts carrying the given role claim.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetAccessClaims(c)
		if !ok {
			abortUnauthorized(c, "missing bearer token", "")
			return
		}

		for _, r := range claims.Roles {
			if r == role {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, authErrorBody{
			Error:   "insufficient permissions",
			TraceID: GetTraceID(c),
		})
	}
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.Header("WWW-Authenticate", `Bearer realm="adminpanel"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, authErrorBody{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(c),
	})
}
