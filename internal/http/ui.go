package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/entities"
)

type UIController struct {
	sessions *auth.Middleware
}

func NewUIController(sessions *auth.Middleware) *UIController {
	return &UIController{
		sessions: sessions,
	}
}

// Index drops any session and sends the visitor to the login page.
// GET /
func (controller *UIController) Index(c *gin.Context) {
	controller.sessions.ClearSession(c)
	c.Redirect(http.StatusFound, auth.LoginPath)
}

// SearchPage is the catalog browser for signed-in users.
// GET /search
func (controller *UIController) SearchPage(c *gin.Context) {
	c.HTML(http.StatusOK, "search", pageData(c, gin.H{
		"Title": "Search books",
	}))
}

// AdminPage is the catalog management console.
// GET /admin
func (controller *UIController) AdminPage(c *gin.Context) {
	c.HTML(http.StatusOK, "admin", pageData(c, gin.H{
		"Title": "Library admin",
	}))
}

// StudentPage sends students to the search page.
// GET /student
func (controller *UIController) StudentPage(c *gin.Context) {
	id, ok := auth.GetIdentity(c)
	if ok && id.HasRole(entities.UserRoleStudent) {
		c.Redirect(http.StatusFound, "/search")
		return
	}
	c.String(http.StatusForbidden, "Forbidden")
}
