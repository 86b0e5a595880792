package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookhive/internal/audit"
	dbaudit "github.com/mrlokans/bookhive/internal/database/audit"
	"github.com/mrlokans/bookhive/internal/entities"
)

const (
	defaultAuditPageSize = 25
	maxAuditPageSize     = 100
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns a page of audit events, newest first.
// Filters: type (catalog, lending, auth), user_id.
// GET /api/audit
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit := parseQueryInt(c, "limit", defaultAuditPageSize)
	if limit < 1 || limit > maxAuditPageSize {
		limit = defaultAuditPageSize
	}

	eventType := entities.AuditEventType(c.Query("type"))
	if eventType != "" && !isKnownEventType(eventType) {
		respondBadRequest(c, "Unknown event type")
		return
	}

	events, total, err := ac.auditService.GetEvents(dbaudit.Filter{
		UserID:    uint(parseQueryInt(c, "user_id", 0)),
		EventType: eventType,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		respondInternalError(c, err, "Fetching audit events")
		return
	}

	totalPages := (int(total) + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	c.JSON(http.StatusOK, gin.H{
		"events":       events,
		"page":         page,
		"limit":        limit,
		"total_pages":  totalPages,
		"total_events": total,
	})
}

func isKnownEventType(t entities.AuditEventType) bool {
	switch t {
	case entities.AuditEventCatalog, entities.AuditEventLending, entities.AuditEventAuth:
		return true
	}
	return false
}
