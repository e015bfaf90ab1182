package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osetrov/adminpanel-auth/internal/transport/http/middleware"
	"github.com/osetrov/adminpanel-auth/internal/usecase"
)

// AuthHandler serves the login, refresh and logout endpoints.
type AuthHandler struct {
	auth   *usecase.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *usecase.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Login authenticates an email/password pair and issues a token pair. All
// credential rejections get the same 401 body, whether the password was
// wrong, the account is unknown, or it is locked.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	clientIP := middleware.GetRequestContext(c).IP

	account, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, clientIP)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "failed to sign in")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Account: AccountSummary{
			ID:       account.ID,
			Email:    account.Email.String(),
			Username: account.Username.String(),
			Roles:    account.Roles,
		},
		Tokens: tokenPairResponse(pair),
	})
}

// Refresh exchanges a refresh token for a new pair via atomic rotation.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	clientIP := middleware.GetRequestContext(c).IP

	account, pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientIP)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenNotFound, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: usecase.ErrTokenInactive, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Account: AccountSummary{
			ID:       account.ID,
			Email:    account.Email.String(),
			Username: account.Username.String(),
			Roles:    account.Roles,
		},
		Tokens: tokenPairResponse(pair),
	})
}

// Logout revokes the presented refresh token, ending that session.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "refresh_token is required"))
		return
	}

	clientIP := middleware.GetRequestContext(c).IP

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken, clientIP); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTokenNotFound, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
			{Err: usecase.ErrTokenInactive, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "failed to sign out")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "signed out"})
}

// Me returns the claims of the authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetAccessClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "missing bearer token"))
		return
	}

	c.JSON(http.StatusOK, AccountSummary{
		ID:       claims.AccountID,
		Email:    claims.Email,
		Username: claims.Username,
		Roles:    claims.Roles,
	})
}

func tokenPairResponse(pair *usecase.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:           pair.AccessToken,
		TokenType:             "Bearer",
		AccessTokenExpiresAt:  pair.AccessTokenExpiresAt,
		RefreshToken:          pair.RefreshToken,
		RefreshTokenExpiresAt: pair.RefreshTokenExpiresAt,
	}
}
