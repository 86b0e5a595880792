package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/entities"
)

// ContextKeyIdentity is the gin context key holding the verified Identity.
const ContextKeyIdentity = "auth_identity"

// Identity is the caller as proven by a verified session token. It is a
// value type; handlers receive a copy and cannot alter the session.
type Identity struct {
	UserID uint              `json:"id"`
	Email  string            `json:"email"`
	Name   string            `json:"name"`
	Role   entities.UserRole `json:"role"`
}

// IdentityFromUser builds an identity carrying the user's stored role.
func IdentityFromUser(u *entities.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// ElevatedIdentity builds an admin identity for an allow-listed user,
// regardless of the stored role.
func ElevatedIdentity(u *entities.User) Identity {
	id := IdentityFromUser(u)
	id.Role = entities.UserRoleAdmin
	return id
}

func (i Identity) IsAdmin() bool {
	return i.Role == entities.UserRoleAdmin
}

// HasRole reports whether the identity holds one of roles.
func (i Identity) HasRole(roles ...entities.UserRole) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// GetIdentity returns the identity of the request, if authenticated.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	if !ok || id.UserID == 0 {
		return Identity{}, false
	}
	return id, true
}

// GetUserID returns the authenticated user's ID, or 0 when anonymous.
func GetUserID(c *gin.Context) uint {
	id, _ := GetIdentity(c)
	return id.UserID
}
