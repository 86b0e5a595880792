package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/catalog"
	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/database"
	dbaudit "github.com/mrlokans/bookhive/internal/database/audit"
	"github.com/mrlokans/bookhive/internal/database/dbtest"
	"github.com/mrlokans/bookhive/internal/entities"
	"github.com/mrlokans/bookhive/internal/lending"
)

const testMaxPDFSize = 1 << 20

// testEnv is a fully wired router over a throwaway database with one admin
// and one student already signed in.
type testEnv struct {
	router  *gin.Engine
	db      *gorm.DB
	catalog *catalog.Service
	audit   *audit.Service
	tokens  *auth.TokenIssuer

	admin   *entities.User
	student *entities.User

	adminCookie   *http.Cookie
	studentCookie *http.Cookie
}

// newTestEnv builds the environment; opts adjust the router config before it is built.
func newTestEnv(t *testing.T, opts ...func(*RouterConfig)) *testEnv {
	t.Helper()

	db := dbtest.New(t)
	authCfg := config.Auth{
		BcryptCost:       bcrypt.MinCost,
		TokenExpiry:      time.Hour,
		MaxLoginAttempts: 5,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
	authService := auth.NewService(db, authCfg, config.Admin{})

	tokens, err := auth.NewTokenIssuer([]byte("http-test-secret"), time.Hour)
	require.NoError(t, err)

	auditService := audit.NewService(dbaudit.NewRepository(db))
	t.Cleanup(auditService.Wait)

	env := &testEnv{
		db:      db,
		catalog: catalog.NewService(db),
		audit:   auditService,
		tokens:  tokens,
	}

	routerCfg := RouterConfig{
		Database:      &database.Database{DB: db},
		Catalog:       env.catalog,
		Lending:       lending.NewService(db),
		Audit:         auditService,
		AuthService:   authService,
		Tokens:        tokens,
		AuthConfig:    authCfg,
		TemplatesPath: "../../templates",
		StaticPath:    "../../static",
		MaxPDFSize:    testMaxPDFSize,
		Logger:        zerolog.Nop(),
		Version:       "test",
	}
	for _, opt := range opts {
		opt(&routerCfg)
	}
	router, stop := NewRouter(routerCfg)
	t.Cleanup(stop)
	env.router = router

	env.admin, err = authService.CreateUser("Ada Admin", "admin@example.com", "password1", entities.UserRoleAdmin)
	require.NoError(t, err)
	env.student, err = authService.CreateUser("Sam Student", "sam@example.com", "password1", entities.UserRoleStudent)
	require.NoError(t, err)

	env.adminCookie = env.cookieFor(t, env.admin)
	env.studentCookie = env.cookieFor(t, env.student)
	return env
}

func (e *testEnv) cookieFor(t *testing.T, user *entities.User) *http.Cookie {
	t.Helper()
	token, _, err := e.tokens.Issue(auth.IdentityFromUser(user))
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookieName, Value: token}
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) jsonRequest(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return e.do(req, cookie)
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return e.do(req, cookie)
}

// multipartRequest builds a form submission, attaching pdf under pdfFile when non-nil.
func (e *testEnv) multipartRequest(t *testing.T, method, path string, fields map[string]string, pdf []byte, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if pdf != nil {
		part, err := w.CreateFormFile(pdfFormField, "book.pdf")
		require.NoError(t, err)
		_, err = part.Write(pdf)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.do(req, cookie)
}

// createBook adds a book through the API as admin and returns it.
func (e *testEnv) createBook(t *testing.T, title, author, genre string, quantity int) entities.Book {
	t.Helper()
	rr := e.jsonRequest(http.MethodPost, "/api/books", map[string]any{
		"title":    title,
		"author":   author,
		"genre":    genre,
		"quantity": quantity,
	}, e.adminCookie)
	require.Contains(t, []int{http.StatusCreated, http.StatusOK}, rr.Code, rr.Body.String())

	var resp struct {
		Book entities.Book `json:"book"`
	}
	decode(t, rr, &resp)
	return resp.Book
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func messageOf(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rr, &resp)
	return resp.Message
}

// bookPath builds /api/books/<id><suffix>.
func bookPath(id uint, suffix string) string {
	return fmt.Sprintf("/api/books/%d%s", id, suffix)
}
