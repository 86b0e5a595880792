package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/entities"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "token"

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/auth/login"

// Middleware resolves the session cookie into an Identity and gates routes on it.
type Middleware struct {
	tokens        *TokenIssuer
	secureCookies bool
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(tokens *TokenIssuer, secureCookies bool) *Middleware {
	return &Middleware{tokens: tokens, secureCookies: secureCookies}
}

// Handler verifies the session cookie once per request. A valid token stores
// the Identity in the context; an invalid or expired one is cleared and the
// request continues anonymously.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(SessionCookieName)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		id, err := m.tokens.Verify(raw)
		if err != nil {
			m.ClearSession(c)
			c.Next()
			return
		}

		c.Set(ContextKeyIdentity, id)
		c.Next()
	}
}

// StartSession issues a token for id and sets it as the session cookie.
func (m *Middleware) StartSession(c *gin.Context, id Identity) error {
	token, expiresAt, err := m.tokens.Issue(id)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(ContextKeyIdentity, id)
	return nil
}

// ClearSession expires the session cookie.
func (m *Middleware) ClearSession(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireAuth rejects anonymous requests: 401 JSON for API calls, a redirect
// to the login page otherwise.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetIdentity(c); ok {
			c.Next()
			return
		}
		if IsAPIRequest(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authenticated"})
			return
		}
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
	}
}

// RequireRole returns a middleware that requires one of roles. Anonymous
// requests are treated as RequireAuth would.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			m.RequireAuth()(c)
			return
		}
		if !id.HasRole(roles...) {
			if IsAPIRequest(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
			} else {
				c.String(http.StatusForbidden, "Forbidden")
				c.Abort()
			}
			return
		}
		c.Next()
	}
}

// IsAPIRequest reports whether the caller expects JSON rather than a page.
func IsAPIRequest(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}
