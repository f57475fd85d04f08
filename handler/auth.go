package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/civicfund/config"
	"github.com/AnTengye/civicfund/middleware"
	"github.com/AnTengye/civicfund/model"
	"github.com/AnTengye/civicfund/pkg/logger"
	"github.com/AnTengye/civicfund/service"
)

type AuthHandler struct {
	store *service.Store
	auth  *config.AuthConfig
}

func NewAuthHandler(store *service.Store, auth *config.AuthConfig) *AuthHandler {
	return &AuthHandler{store: store, auth: auth}
}

// Login handles authority login
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	authority, err := h.store.Authenticate(req.Username, req.Password)
	if err != nil {
		logger.Warn(c.Request.Context(), "authority login failed", "username", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid username or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(authority, h.auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, model.LoginResponse{
		Success:   true,
		Authority: authority,
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// Register creates an authority. Usernames and wallet addresses are unique.
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Username and password are required"})
		return
	}

	authority, err := h.store.RegisterAuthority(model.Authority{
		Username:      req.Username,
		Name:          req.Name,
		Department:    req.Department,
		WalletAddress: req.WalletAddress,
	}, req.Password)
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Username already exists"})
		return
	case errors.Is(err, service.ErrWalletTaken):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Wallet address already registered"})
		return
	case err != nil:
		logger.Error(c.Request.Context(), "authority registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to register authority"})
		return
	}

	logger.Info(logger.WithAuthority(c.Request.Context(), authority.ID), "authority registered",
		"username", authority.Username,
		"wallet", authority.WalletAddress,
	)
	c.JSON(http.StatusOK, model.RegisterResponse{Success: true, AuthorityID: authority.ID})
}

// Me returns the authority behind the bearer token
func (h *AuthHandler) Me(c *gin.Context) {
	authority := h.store.ResolveAuthority(middleware.GetAuthorityID(c))
	if authority == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authority no longer exists"})
		return
	}
	c.JSON(http.StatusOK, authority)
}
