package http

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/entities"
)

func TestRouter_DuplicateMergeScenario(t *testing.T) {
	env := newTestEnv(t)

	env.createBook(t, "Dune", "Frank Herbert", "Sci-Fi", 2)
	env.createBook(t, "dune", "FRANK HERBERT", "sci-fi", 3)

	var books []entities.Book
	decode(t, env.get("/api/books", env.studentCookie), &books)
	require.Len(t, books, 1)
	assert.Equal(t, "Dune", books[0].Title)
	assert.Equal(t, 5, books[0].Quantity)
	assert.True(t, books[0].Available)
}

func TestRouter_BodyCapPrecedesCSRF(t *testing.T) {
	env := newTestEnv(t, func(cfg *RouterConfig) {
		cfg.CSRFSecret = bytes.Repeat([]byte("k"), 32)
	})
	fields := map[string]string{"title": "Dune", "author": "Frank Herbert", "genre": "Sci-Fi"}

	t.Run("oversized form post is refused before the body is parsed", func(t *testing.T) {
		big := append([]byte("%PDF-1.4\n"), []byte(strings.Repeat("x", testMaxPDFSize+2*uploadOverhead))...)

		rr := env.multipartRequest(t, http.MethodPost, "/api/books", fields, big, env.adminCookie)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Equal(t, "Request body too large", messageOf(t, rr))
	})

	t.Run("small form post without a token still fails CSRF", func(t *testing.T) {
		rr := env.multipartRequest(t, http.MethodPost, "/api/books", fields, samplePDF, env.adminCookie)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestRouter_AdminGate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/api/audit", env.studentCookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.get("/api/audit", env.adminCookie)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_Pages(t *testing.T) {
	t.Run("index clears the session and redirects to login", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/", env.studentCookie)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
		cleared := false
		for _, c := range rr.Result().Cookies() {
			if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared)
	})

	t.Run("search redirects anonymous visitors", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/search", nil)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, auth.LoginPath, rr.Header().Get("Location"))
	})

	t.Run("search renders for a student", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/search", env.studentCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "search-input")
		assert.Contains(t, rr.Body.String(), "Sam Student")
	})

	t.Run("admin page is forbidden to students", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/admin", env.studentCookie)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "Forbidden", rr.Body.String())
	})

	t.Run("admin page renders for admins", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/admin", env.adminCookie)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "book-form")
	})

	t.Run("student page sends students to search", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/student", env.studentCookie)

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/search", rr.Header().Get("Location"))
	})

	t.Run("student page is forbidden to everyone else", func(t *testing.T) {
		env := newTestEnv(t)

		assert.Equal(t, http.StatusForbidden, env.get("/student", env.adminCookie).Code)
		assert.Equal(t, http.StatusForbidden, env.get("/student", nil).Code)
	})

	t.Run("login page renders", func(t *testing.T) {
		env := newTestEnv(t)

		rr := env.get("/auth/login", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `name="asAdmin"`)
	})
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/ping", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestRouter_StaticAssets(t *testing.T) {
	env := newTestEnv(t)

	rr := env.get("/static/js/api.js", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "X-CSRF-Token")
}

func TestRouter_AuditTrail(t *testing.T) {
	env := newTestEnv(t)
	book := env.createBook(t, "Dune", "Frank Herbert", "Sci-Fi", 1)
	require.Equal(t, http.StatusOK, env.jsonRequest(http.MethodPatch, bookPath(book.ID, "/borrow"), nil, env.studentCookie).Code)
	env.audit.Wait()

	rr := env.get("/api/audit?type=lending", env.adminCookie)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Events      []entities.AuditEvent `json:"events"`
		TotalEvents int                   `json:"total_events"`
	}
	decode(t, rr, &resp)
	require.Equal(t, 1, resp.TotalEvents)
	assert.Equal(t, "borrow", resp.Events[0].Action)
	assert.Equal(t, env.student.ID, resp.Events[0].UserID)

	rr = env.get("/api/audit?type=bogus", env.adminCookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
