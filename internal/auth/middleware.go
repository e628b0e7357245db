package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	// InterruptTokenParam is the query parameter carrying an interrupt token.
	InterruptTokenParam = "token"
)

// RequireAccessToken verifies an access token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := m.Verify(tok, TokenTypeAccess, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// RequireInterruptToken authenticates navigation beacons for the call named
// by :id. The token is read from ?token= and, failing that, a bearer header.
func RequireInterruptToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := strings.TrimSpace(c.Query(InterruptTokenParam))
		if tok == "" {
			tok, _ = bearerToken(c)
		}
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing interrupt token"})
			return
		}
		claims, err := m.Verify(tok, TokenTypeInterrupt, time.Now())
		if err != nil || claims.ScreeningCallID != c.Param("id") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

func setIdentity(c *gin.Context, claims Claims) {
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), claims.Identity()))
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
}
