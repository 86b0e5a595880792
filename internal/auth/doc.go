// Package auth provides authentication and authorization for BookHive.
//
// Sessions are stateless: a successful login or signup issues an HS256 JWT
// carrying the user's id, email, name and role, stored in the httpOnly
// "token" cookie. Middleware.Handler verifies the cookie once per request
// and stores an immutable Identity in the gin context; RequireAuth and
// RequireRole gate routes on it.
//
// Admin elevation: a login with asAdmin set succeeds when the email is on
// ADMIN_EMAILS and the password equals ADMIN_PASSWORD. The issued token
// carries the admin role whatever the stored role is.
//
// # Configuration
//
//	AUTH_JWT_SECRET=<random>      # Auto-generated if empty (sessions reset on restart)
//	AUTH_TOKEN_EXPIRY=168h        # Session lifetime
//	AUTH_BCRYPT_COST=12           # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true      # HTTPS-only cookies
//	AUTH_MAX_LOGIN_ATTEMPTS=5     # Failed logins per IP+email before lockout
//
// # Usage
//
//	issuer, _ := auth.NewTokenIssuer(secret, cfg.Auth.TokenExpiry)
//	mw := auth.NewMiddleware(issuer, cfg.Auth.SecureCookies)
//	router.Use(mw.Handler())
//	router.GET("/admin", mw.RequireRole(entities.UserRoleAdmin), handler)
//
// Extract the caller in handlers:
//
//	id, ok := auth.GetIdentity(c)
package auth
