package http

import (
	"github.com/rs/zerolog"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/catalog"
	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/database"
	"github.com/mrlokans/bookhive/internal/lending"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Catalog  *catalog.Service
	Lending  *lending.Service
	Audit    *audit.Service

	// Authentication
	AuthService *auth.Service
	Tokens      *auth.TokenIssuer
	AuthConfig  config.Auth
	// CSRFSecret enables CSRF protection when non-empty.
	CSRFSecret []byte

	// UI paths
	TemplatesPath string
	StaticPath    string

	// Request limits
	MaxPDFSize int64
	RateLimit  config.RateLimit
	CORS       config.CORS

	Logger zerolog.Logger

	// Application info
	Version string
}
