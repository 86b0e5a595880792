package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/auth"
	"github.com/mrlokans/bookhive/internal/lending"
)

// lendingRequest is the optional body of a borrow or return. BorrowerID may
// be a number or a numeric string.
type lendingRequest struct {
	BorrowerID flexibleID `json:"borrowerId"`
}

// flexibleID accepts 7, "7" or null.
type flexibleID uint

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" || raw == `""` {
		*f = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return err
	}
	*f = flexibleID(n)
	return nil
}

type LoansController struct {
	lending *lending.Service
	audit   *audit.Service
}

func NewLoansController(lending *lending.Service, auditor *audit.Service) *LoansController {
	return &LoansController{
		lending: lending,
		audit:   auditor,
	}
}

// Borrow lends one copy to the caller, or to borrowerId when an admin asks.
// PATCH /api/books/:id/borrow
func (controller *LoansController) Borrow(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	borrowerID, ok := resolveBorrower(c)
	if !ok {
		return
	}

	result, err := controller.lending.Borrow(c.Request.Context(), bookID, borrowerID)
	controller.audit.LogLending(auditActor(c), "borrow", bookID, borrowerID, err)
	if err != nil {
		respondDomainError(c, err, "Borrowing book")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Book borrowed successfully", Book: result.Book})
}

// Return closes the borrower's open loan of the book.
// PATCH /api/books/:id/return
func (controller *LoansController) Return(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	borrowerID, ok := resolveBorrower(c)
	if !ok {
		return
	}

	result, err := controller.lending.Return(c.Request.Context(), bookID, borrowerID)
	controller.audit.LogLending(auditActor(c), "return", bookID, borrowerID, err)
	if err != nil {
		respondDomainError(c, err, "Returning book")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Book returned successfully", Book: result.Book})
}

// History lists the caller's loans, newest first.
// GET /api/books/history
func (controller *LoansController) History(c *gin.Context) {
	entries, err := controller.lending.History(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondDomainError(c, err, "Fetching history")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ActiveLoans lists who currently holds a copy of the book.
// GET /api/books/:id/activeLoans
func (controller *LoansController) ActiveLoans(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	active, err := controller.lending.ActiveLoans(c.Request.Context(), bookID)
	if err != nil {
		respondDomainError(c, err, "Fetching active loans")
		return
	}
	c.JSON(http.StatusOK, active)
}

// BorrowedStats counts open loans: all of them for an admin, the caller's otherwise.
// GET /api/books/stats/borrowed
func (controller *LoansController) BorrowedStats(c *gin.Context) {
	id, _ := auth.GetIdentity(c)

	userID := id.UserID
	if id.IsAdmin() {
		userID = 0
	}

	count, err := controller.lending.BorrowedCount(c.Request.Context(), userID)
	if err != nil {
		respondDomainError(c, err, "Counting loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"borrowed": count})
}

// resolveBorrower picks the user a lending action applies to. An empty body
// means the caller. Naming someone else requires admin. On failure it
// writes the response and returns false.
func resolveBorrower(c *gin.Context) (uint, bool) {
	id, ok := auth.GetIdentity(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return 0, false
	}

	var req lendingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBadRequest(c, "Invalid JSON body")
		return 0, false
	}

	borrowerID := uint(req.BorrowerID)
	if borrowerID == 0 || borrowerID == id.UserID {
		return id.UserID, true
	}
	if !id.IsAdmin() {
		respondError(c, http.StatusForbidden, "Only admins can act for another user")
		return 0, false
	}
	return borrowerID, true
}
