package http

import (
	"html/template"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/entities"
)

// uploadOverhead is the body allowance on top of the PDF limit for the other form fields.
const uploadOverhead = 1 << 20

// templateFuncs are available to every page template.
var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
	"year": func() int {
		return time.Now().Year()
	},
}

// NewRouter creates and configures the HTTP router with all endpoints.
// The returned function releases background resources held by the router.
func NewRouter(cfg RouterConfig) (*gin.Engine, func()) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(cfg.Logger))

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	if len(cfg.CORS.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(cfg.CORS))
	}

	var limiter *IPRateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = NewIPRateLimiter(cfg.RateLimit)
		router.Use(limiter.Middleware())
	}

	// PDFs are already compressed.
	router.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/books/[^/]+/pdf$`}),
	))

	// The cap must be in place before CSRF, which parses form bodies.
	if cfg.MaxPDFSize > 0 {
		router.Use(MaxBodySize(cfg.MaxPDFSize + uploadOverhead))
	}

	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies))
	}

	sessions := auth.NewMiddleware(cfg.Tokens, cfg.AuthConfig.SecureCookies)
	router.Use(sessions.Handler())

	// Load HTML templates with custom functions
	tmpl := template.Must(template.New("").Funcs(templateFuncs).ParseGlob(cfg.TemplatesPath + "/*.html"))
	router.SetHTMLTemplate(tmpl)

	if cfg.StaticPath != "" {
		router.Static("/static", cfg.StaticPath)
	}

	authController := auth.NewAuthController(cfg.AuthService, sessions, cfg.Audit, cfg.TemplatesPath, cfg.AuthConfig)
	authController.RegisterRoutes(router)

	health := NewHealthController(cfg.Database, cfg.Version)
	booksController := NewBooksController(cfg.Catalog, cfg.Audit, cfg.MaxPDFSize)
	loansController := NewLoansController(cfg.Lending, cfg.Audit)
	auditController := NewAuditController(cfg.Audit)
	uiController := NewUIController(sessions)

	requireAuth := sessions.RequireAuth()
	requireAdmin := sessions.RequireRole(entities.UserRoleAdmin)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	// Pages
	router.GET("/", uiController.Index)
	router.GET("/search", requireAuth, uiController.SearchPage)
	router.GET("/admin", requireAdmin, uiController.AdminPage)
	router.GET("/student", uiController.StudentPage)

	api := router.Group("/api", requireAuth)

	books := api.Group("/books")
	books.GET("", booksController.GetAllBooks)
	books.GET("/history", loansController.History)
	books.GET("/stats/borrowed", loansController.BorrowedStats)
	books.GET("/:id", booksController.GetBook)
	books.GET("/:id/pdf", booksController.GetPDF)
	books.GET("/:id/activeLoans", loansController.ActiveLoans)
	books.PATCH("/:id/borrow", loansController.Borrow)
	books.PATCH("/:id/return", loansController.Return)

	catalogWrites := books.Group("", requireAdmin)
	catalogWrites.POST("", booksController.CreateBook)
	catalogWrites.PUT("/:id", booksController.UpdateBook)
	catalogWrites.DELETE("/:id", booksController.DeleteBook)

	api.GET("/audit", requireAdmin, auditController.GetAuditEvents)

	return router, authController.Stop
}
