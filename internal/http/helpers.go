package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/catalog"
	"github.com/mrlokans/bookhive/internal/lending"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Message string `json:"message"`
}

// MessageResponse is a message with an optional book payload.
type MessageResponse struct {
	Message string `json:"message"`
	Book    any    `json:"book,omitempty"`
	Merged  bool   `json:"merged,omitempty"`
}

// --- Error Response Helpers ---

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Message: message})
}

// respondError sends an error response with the given status code.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Message: message})
}

// respondInternalError logs the error and sends a 500 response naming the
// failed operation. The cause is logged but not exposed to the client.
func respondInternalError(c *gin.Context, err error, operation string) {
	log.Error().
		Err(err).
		Str("operation", operation).
		Str("request_id", c.GetString(contextKeyRequestID)).
		Msg("Internal error")
	c.JSON(http.StatusInternalServerError, ErrorResponse{Message: operation + " failed"})
}

// domainErrors maps domain sentinel errors to a status and client message.
var domainErrors = []struct {
	err     error
	status  int
	message string
}{
	{catalog.ErrInvalidBook, http.StatusBadRequest, "Title, author and genre are required"},
	{catalog.ErrNegativeQuantity, http.StatusBadRequest, "Quantity cannot be negative"},
	{catalog.ErrQuantityTooLarge, http.StatusBadRequest, "Quantity is too large"},
	{catalog.ErrInvalidStatus, http.StatusBadRequest, "Status must be online or offline"},
	{catalog.ErrNotPDF, http.StatusBadRequest, "Only PDF files are accepted"},
	{catalog.ErrBookNotFound, http.StatusNotFound, "Book not found"},
	{catalog.ErrNoPDF, http.StatusNotFound, "No PDF found"},
	{lending.ErrBookNotFound, http.StatusNotFound, "Book not found"},
	{lending.ErrBookUnavailable, http.StatusBadRequest, "Book not available"},
	{lending.ErrNotAuthenticated, http.StatusUnauthorized, "Not authenticated"},
	{lending.ErrAlreadyBorrowed, http.StatusBadRequest, "This user already borrowed this book"},
	{lending.ErrNoActiveLoan, http.StatusBadRequest, "No active loan for this user"},
	{lending.ErrBorrowerNotFound, http.StatusNotFound, "User not found"},
}

// respondDomainError translates a catalog or lending error to its HTTP
// response. Unknown errors become a 500 naming operation.
func respondDomainError(c *gin.Context, err error, operation string) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			respondError(c, m.status, m.message)
			return
		}
	}
	respondInternalError(c, err, operation)
}

// --- Parameter Parsing ---

// parseIDParam extracts and validates an unsigned integer ID from URL parameters.
// Returns the parsed ID or responds with a 400 error and returns 0, false.
func parseIDParam(c *gin.Context, paramName string) (uint, bool) {
	idStr := c.Param(paramName)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		respondBadRequest(c, "invalid "+paramName)
		return 0, false
	}
	return uint(id), true
}

// parseQueryInt reads a non-negative integer query parameter, falling back to def.
func parseQueryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// auditActor describes the caller for the audit trail.
func auditActor(c *gin.Context) audit.Actor {
	return audit.Actor{
		UserID:    auth.GetUserID(c),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}
