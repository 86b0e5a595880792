package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/auth"
)

// AuthTemplateData holds authentication info for templates.
type AuthTemplateData struct {
	LoggedIn  bool
	UserID    uint
	Name      string
	Email     string
	Role      string
	IsAdmin   bool
	CSRFToken string // empty when CSRF protection is off
}

// GetAuthTemplateData builds the template view of the current session.
func GetAuthTemplateData(c *gin.Context) AuthTemplateData {
	data := AuthTemplateData{CSRFToken: auth.GetCSRFToken(c)}

	id, ok := auth.GetIdentity(c)
	if !ok {
		return data
	}
	data.LoggedIn = true
	data.UserID = id.UserID
	data.Name = id.Name
	data.Email = id.Email
	data.Role = string(id.Role)
	data.IsAdmin = id.IsAdmin()
	return data
}

// pageData merges the auth view into page-specific values under "Auth".
func pageData(c *gin.Context, values gin.H) gin.H {
	data := gin.H{"Auth": GetAuthTemplateData(c)}
	for k, v := range values {
		data[k] = v
	}
	return data
}
