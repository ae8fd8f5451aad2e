package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/pkg/util"
)

// Context keys for request identity
const (
	UserIDKey      = "user_id"
	PrincipalKey   = "principal"
	AccessTokenKey = "access_token"
	TokenExpiryKey = "token_expiry"
	SessionKeyKey  = "session_key"

	SessionKeyHeader = "X-Session-Key"
)

// TokenChecker reports revoked access tokens
type TokenChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// PrincipalResolver loads the current principal of an authenticated user
type PrincipalResolver interface {
	ResolvePrincipal(userID uint) (model.Principal, error)
}

type AuthMiddleware struct {
	jwtSecret string
	blacklist TokenChecker
	resolver  PrincipalResolver
}

// NewAuthMiddleware creates the middleware. blacklist may be nil when Redis is not configured.
func NewAuthMiddleware(jwtSecret string, blacklist TokenChecker, resolver PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		blacklist: blacklist,
		resolver:  resolver,
	}
}

type authFailure struct {
	code    string
	message string
}

func (m *AuthMiddleware) authenticate(c *gin.Context, token string) *authFailure {
	log := GetLoggerFromContext(c)

	claims, err := util.ValidateToken(token, m.jwtSecret)
	if err != nil {
		log.Warn("Token validation failed", map[string]interface{}{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		})
		if errors.Is(err, util.ErrExpiredToken) {
			return &authFailure{apperrors.AuthTokenExpired, "Session expired, please log in again"}
		}
		return &authFailure{apperrors.AuthTokenInvalid, "Invalid authentication token"}
	}
	if claims.TokenType != util.TokenTypeAccess {
		return &authFailure{apperrors.AuthTokenInvalid, "Invalid authentication token"}
	}

	if m.blacklist != nil {
		revoked, err := m.blacklist.IsRevoked(c.Request.Context(), token)
		if err != nil {
			log.Error("Failed to check token blacklist", err)
		}
		if revoked {
			return &authFailure{apperrors.AuthTokenRevoked, "Session ended, please log in again"}
		}
	}

	var principal model.Principal = model.Buyer{UserID: claims.UserID, Email: claims.Email}
	if m.resolver != nil {
		principal, err = m.resolver.ResolvePrincipal(claims.UserID)
		if err != nil {
			log.Warn("Failed to resolve principal", map[string]interface{}{
				"user_id": claims.UserID,
				"error":   err.Error(),
			})
			return &authFailure{apperrors.AuthTokenInvalid, "Account not found"}
		}
	}

	c.Set(UserIDKey, claims.UserID)
	c.Set(PrincipalKey, principal)
	c.Set(AccessTokenKey, token)
	if claims.ExpiresAt != nil {
		c.Set(TokenExpiryKey, claims.ExpiresAt.Time)
	}

	log.Debug("User authenticated successfully", map[string]interface{}{
		"user_id": claims.UserID,
		"role":    claims.Role,
	})
	return nil
}

// Authenticate requires a valid access token
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		var token string
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "Invalid authorization header format")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// browsers cannot set headers on websocket upgrades
			token = c.Query("token")
			if token == "" {
				log.Warn("Missing authorization header", map[string]interface{}{
					"path": c.Request.URL.Path,
				})
				apperrors.Unauthorized(c, "Login required")
				c.Abort()
				return
			}
		}

		if failure := m.authenticate(c, token); failure != nil {
			apperrors.RespondWithError(c, http.StatusUnauthorized, failure.code, failure.message)
			c.Abort()
			return
		}

		c.Next()
	}
}

// OptionalAuthenticate accepts guests. A valid token authenticates the request;
// anything else continues as a guest identified by X-Session-Key.
func (m *AuthMiddleware) OptionalAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		if parts := strings.Split(c.GetHeader("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
			if failure := m.authenticate(c, parts[1]); failure == nil {
				c.Next()
				return
			}
			log.Debug("Token rejected - continuing as guest", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
		}

		c.Set(PrincipalKey, model.Guest{SessionKey: ensureSessionKey(c)})
		c.Next()
	}
}

// GuestSession exposes X-Session-Key to handlers, issuing a new one when absent
func GuestSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ensureSessionKey(c)
		c.Next()
	}
}

func ensureSessionKey(c *gin.Context) string {
	if key := c.GetString(SessionKeyKey); key != "" {
		return key
	}
	key := strings.TrimSpace(c.GetHeader(SessionKeyHeader))
	if _, err := uuid.Parse(key); err != nil {
		key = uuid.New().String()
		c.Header(SessionKeyHeader, key)
	}
	c.Set(SessionKeyKey, key)
	return key
}

// RequireAdmin allows only administrators
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.require(func(p model.Principal) (bool, string, string) {
		_, ok := p.(model.Admin)
		return ok, apperrors.AuthzAdminOnly, "Administrators only"
	})
}

// RequireApprovedSeller allows only sellers whose profile was approved
func (m *AuthMiddleware) RequireApprovedSeller() gin.HandlerFunc {
	return m.require(func(p model.Principal) (bool, string, string) {
		seller, ok := p.(model.SellerPrincipal)
		if !ok {
			return false, apperrors.AuthzSellerOnly, "Sellers only"
		}
		if !seller.Approved {
			return false, apperrors.SellerNotApproved, "Seller account is awaiting approval"
		}
		return true, "", ""
	})
}

// RequireFulfillment allows administrators and approved sellers
func (m *AuthMiddleware) RequireFulfillment() gin.HandlerFunc {
	return m.require(func(p model.Principal) (bool, string, string) {
		switch v := p.(type) {
		case model.Admin:
			return true, "", ""
		case model.SellerPrincipal:
			if v.Approved {
				return true, "", ""
			}
			return false, apperrors.SellerNotApproved, "Seller account is awaiting approval"
		}
		return false, apperrors.AuthzForbidden, "Access denied"
	})
}

func (m *AuthMiddleware) require(allow func(model.Principal) (bool, string, string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		principal, ok := GetPrincipal(c)
		if !ok {
			apperrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		allowed, code, message := allow(principal)
		if !allowed {
			userID, _ := GetUserID(c)
			log.Warn("Insufficient permissions", map[string]interface{}{
				"user_id": userID,
				"path":    c.Request.URL.Path,
			})
			apperrors.RespondWithError(c, http.StatusForbidden, code, message)
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetPrincipal extracts the request principal from context
func GetPrincipal(c *gin.Context) (model.Principal, bool) {
	value, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(model.Principal)
	return principal, ok
}

// GetSessionKey returns the guest session key of the request
func GetSessionKey(c *gin.Context) string {
	return c.GetString(SessionKeyKey)
}

// GetAccessToken returns the raw access token and its expiry
func GetAccessToken(c *gin.Context) (string, time.Time, bool) {
	token := c.GetString(AccessTokenKey)
	if token == "" {
		return "", time.Time{}, false
	}
	return token, c.GetTime(TokenExpiryKey), true
}
