package auth

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/entities"
)

const (
	msgAllFieldsRequired       = "All fields are required."
	msgPasswordsDoNotMatch     = "Passwords do not match."
	msgEmailTaken              = "Email already registered."
	msgPasswordTooShort        = "Password must be at least 6 characters."
	msgPasswordTooLong         = "Password must be at most 72 bytes."
	msgInvalidCredentials      = "Invalid email or password"
	msgInvalidAdminCredentials = "Invalid admin credentials"
	msgAdminLoginRequired      = "This is an admin email. Tick 'Login as admin'."
)

// isLocalPath validates that a redirect path is local to prevent open redirect attacks.
// Returns true if the path is safe for redirect (local path only).
func isLocalPath(path string) bool {
	if path == "" {
		return false
	}

	// Must start with /
	if !strings.HasPrefix(path, "/") {
		return false
	}

	// Reject protocol-relative URLs (//evil.com)
	if strings.HasPrefix(path, "//") {
		return false
	}

	// Reject URLs with schemes
	if strings.Contains(path, "://") {
		return false
	}

	// Reject paths with backslashes (potential bypass attempts)
	if strings.Contains(path, "\\") {
		return false
	}

	return true
}

// sanitizeRedirectPath returns a safe redirect path, or fallback if invalid.
func sanitizeRedirectPath(path, fallback string) string {
	if isLocalPath(path) {
		return path
	}
	return fallback
}

// HomePath is where a signed-in identity lands after login.
func HomePath(id Identity) string {
	if id.IsAdmin() {
		return "/admin"
	}
	return "/search"
}

type loginForm struct {
	Email    string   `form:"email" json:"email" binding:"notblank"`
	Password string   `form:"password" json:"password" binding:"required"`
	AsAdmin  checkbox `form:"asAdmin" json:"asAdmin"`
	Next     string   `form:"next" json:"next"`
}

// checkbox accepts the values browsers and scripts send for a ticked box:
// true, on, 1 (form or JSON, quoted or not).
type checkbox bool

func (b *checkbox) UnmarshalParam(param string) error {
	*b = checkbox(isTruthy(param))
	return nil
}

func (b *checkbox) UnmarshalJSON(data []byte) error {
	*b = checkbox(isTruthy(strings.Trim(string(data), `"`)))
	return nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1":
		return true
	}
	return false
}

type signupForm struct {
	Name            string `form:"name" json:"name" binding:"notblank"`
	Email           string `form:"email" json:"email" binding:"notblank"`
	Password        string `form:"password" json:"password" binding:"required"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword" binding:"required"`
}

// AuthController handles authentication-related HTTP endpoints.
type AuthController struct {
	service     *Service
	middleware  *Middleware
	audit       *audit.Service
	templates   *template.Template
	rateLimiter *RateLimiter
}

// NewAuthController creates a new authentication controller. Templates are
// read from templatesPath/auth; without them every response is JSON.
func NewAuthController(service *Service, middleware *Middleware, auditor *audit.Service, templatesPath string, cfg config.Auth) *AuthController {
	RegisterValidators()

	pattern := filepath.Join(templatesPath, "auth", "*.html")
	tmpl, err := template.ParseGlob(pattern)
	if err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("Auth templates not loaded, falling back to JSON")
		tmpl = nil
	}

	return &AuthController{
		service:     service,
		middleware:  middleware,
		audit:       auditor,
		templates:   tmpl,
		rateLimiter: NewRateLimiter(RateLimitConfigFrom(cfg)),
	}
}

// RegisterRoutes registers authentication routes on the router.
func (ac *AuthController) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/auth")
	group.GET("/login", ac.LoginPage)
	group.POST("/login", ac.Login)
	group.GET("/signup", ac.SignupPage)
	group.POST("/signup", ac.Signup)
	group.POST("/logout", ac.Logout)
	group.GET("/logout", ac.Logout) // Support GET for simple logout links
	group.GET("/me", ac.middleware.RequireAuth(), ac.Me)
	group.GET("/users", ac.middleware.RequireRole(entities.UserRoleAdmin), ac.ListUsers)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	if ac.rateLimiter != nil {
		ac.rateLimiter.Stop()
	}
}

// LoginPage renders the login form.
func (ac *AuthController) LoginPage(c *gin.Context) {
	if id, ok := GetIdentity(c); ok {
		c.Redirect(http.StatusFound, HomePath(id))
		return
	}

	ac.renderTemplate(c, http.StatusOK, "login.html", gin.H{
		"Title":     "Login",
		"Next":      sanitizeRedirectPath(c.Query("next"), ""),
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Login handles the login form submission. With asAdmin set the credentials
// are checked against the admin allow-list and shared secret instead.
func (ac *AuthController) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		ac.loginFailed(c, http.StatusUnauthorized, form, msgInvalidCredentials)
		return
	}

	clientIP := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(clientIP, form.Email); !allowed {
		abortTooManyAttempts(c, retryAfter)
		return
	}

	var (
		user   *entities.User
		err    error
		id     Identity
		action = "login"
	)
	if form.AsAdmin {
		action = "admin_login"
		user, err = ac.service.AuthenticateAdmin(form.Email, form.Password)
		if err == nil {
			id = ElevatedIdentity(user)
		}
	} else {
		user, err = ac.service.Authenticate(form.Email, form.Password)
		if err == nil {
			id = IdentityFromUser(user)
		}
	}

	if err != nil {
		ac.audit.LogAuth(actorFrom(c, 0), action, form.Email, false)

		switch {
		case errors.Is(err, ErrAdminLoginRequired):
			form.AsAdmin = true
			ac.loginFailed(c, http.StatusBadRequest, form, msgAdminLoginRequired)
		case errors.Is(err, ErrInvalidAdminCredentials):
			ac.rateLimiter.RecordFailure(clientIP, form.Email)
			ac.loginFailed(c, http.StatusUnauthorized, form, msgInvalidAdminCredentials)
		case errors.Is(err, ErrInvalidCredentials):
			ac.rateLimiter.RecordFailure(clientIP, form.Email)
			ac.loginFailed(c, http.StatusUnauthorized, form, msgInvalidCredentials)
		default:
			log.Error().Err(err).Str("email", form.Email).Msg("Login failed")
			ac.loginFailed(c, http.StatusInternalServerError, form, "Login failed")
		}
		return
	}

	ac.rateLimiter.RecordSuccess(clientIP, form.Email)

	if err := ac.middleware.StartSession(c, id); err != nil {
		log.Error().Err(err).Uint("user_id", id.UserID).Msg("Failed to issue session token")
		ac.loginFailed(c, http.StatusInternalServerError, form, "Failed to create session")
		return
	}
	ac.audit.LogAuth(actorFrom(c, id.UserID), action, id.Email, true)

	if IsAPIRequest(c) {
		c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": id})
		return
	}
	c.Redirect(http.StatusSeeOther, sanitizeRedirectPath(form.Next, HomePath(id)))
}

func (ac *AuthController) loginFailed(c *gin.Context, status int, form loginForm, message string) {
	if IsAPIRequest(c) {
		c.JSON(status, gin.H{"message": message})
		return
	}
	ac.renderTemplate(c, status, "login.html", gin.H{
		"Title":     "Login",
		"Next":      sanitizeRedirectPath(form.Next, ""),
		"Email":     form.Email,
		"AsAdmin":   bool(form.AsAdmin),
		"CSRFToken": GetCSRFToken(c),
		"Error":     message,
	})
}

// SignupPage renders the signup form.
func (ac *AuthController) SignupPage(c *gin.Context) {
	ac.renderTemplate(c, http.StatusOK, "signup.html", gin.H{
		"Title":     "Sign up",
		"CSRFToken": GetCSRFToken(c),
		"Error":     c.Query("error"),
	})
}

// Signup creates a student account and signs it in.
func (ac *AuthController) Signup(c *gin.Context) {
	var form signupForm
	if err := c.ShouldBind(&form); err != nil {
		ac.signupFailed(c, http.StatusBadRequest, form, msgAllFieldsRequired)
		return
	}

	user, err := ac.service.Register(SignupRequest{
		Name:            form.Name,
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		ac.audit.LogAuth(actorFrom(c, 0), "signup", form.Email, false)

		status, message := http.StatusBadRequest, ""
		switch {
		case errors.Is(err, ErrMissingFields):
			message = msgAllFieldsRequired
		case errors.Is(err, ErrPasswordMismatch):
			message = msgPasswordsDoNotMatch
		case errors.Is(err, ErrEmailTaken):
			message = msgEmailTaken
		case errors.Is(err, ErrPasswordTooShort):
			message = msgPasswordTooShort
		case errors.Is(err, ErrPasswordTooLong):
			message = msgPasswordTooLong
		default:
			log.Error().Err(err).Str("email", form.Email).Msg("Signup failed")
			status, message = http.StatusInternalServerError, "Signup failed"
		}
		ac.signupFailed(c, status, form, message)
		return
	}

	id := IdentityFromUser(user)
	ac.audit.LogAuth(actorFrom(c, id.UserID), "signup", id.Email, true)

	if err := ac.middleware.StartSession(c, id); err != nil {
		log.Error().Err(err).Uint("user_id", id.UserID).Msg("Failed to issue session token")
		ac.signupFailed(c, http.StatusInternalServerError, form, "Failed to create session")
		return
	}

	if IsAPIRequest(c) {
		c.JSON(http.StatusCreated, gin.H{"message": "Signup successful", "user": id})
		return
	}
	c.Redirect(http.StatusSeeOther, HomePath(id))
}

func (ac *AuthController) signupFailed(c *gin.Context, status int, form signupForm, message string) {
	if IsAPIRequest(c) {
		c.JSON(status, gin.H{"message": message})
		return
	}
	ac.renderTemplate(c, status, "signup.html", gin.H{
		"Title":     "Sign up",
		"Name":      form.Name,
		"Email":     form.Email,
		"CSRFToken": GetCSRFToken(c),
		"Error":     message,
	})
}

// Logout clears the session cookie.
func (ac *AuthController) Logout(c *gin.Context) {
	id, ok := GetIdentity(c)
	ac.middleware.ClearSession(c)
	if ok {
		ac.audit.LogAuth(actorFrom(c, id.UserID), "logout", id.Email, true)
	}

	if IsAPIRequest(c) {
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}
	c.Redirect(http.StatusFound, LoginPath)
}

// Me returns the identity of the current session.
func (ac *AuthController) Me(c *gin.Context) {
	id, _ := GetIdentity(c)
	c.JSON(http.StatusOK, id)
}

// ListUsers returns every account, newest first.
func (ac *AuthController) ListUsers(c *gin.Context) {
	users, err := ac.service.ListUsers()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Listing users failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// renderTemplate renders an auth template or falls back to JSON.
func (ac *AuthController) renderTemplate(c *gin.Context, status int, name string, data gin.H) {
	if ac.templates == nil {
		if msg, ok := data["Error"].(string); ok && msg != "" {
			c.JSON(status, gin.H{"message": msg})
			return
		}
		c.JSON(status, data)
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := ac.templates.ExecuteTemplate(c.Writer, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render auth template")
	}
}

func actorFrom(c *gin.Context, userID uint) audit.Actor {
	return audit.Actor{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
