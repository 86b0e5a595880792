// Package audit records who did what to the catalog, the loan ledger and
// user accounts. Events are written in the background; a failed write is
// logged and never fails the request that produced it.
package audit

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/mrlokans/bookhive/internal/database/audit"
	"github.com/mrlokans/bookhive/internal/entities"
)

const (
	maxErrorLength     = 500
	maxUserAgentLength = 500
)

// Actor identifies the origin of an event.
type Actor struct {
	UserID    uint
	IPAddress string
	UserAgent string
}

// Service provides high-level audit logging functionality.
// All logging methods are safe to call on a nil *Service.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records an audit event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	if s == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Error().Err(err).Str("action", event.Action).Msg("Failed to log audit event")
		}
	}()
}

// Wait blocks until pending background writes have finished.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// LogCatalog records a catalog write such as "book_create", "book_merge",
// "book_update" or "book_delete".
func (s *Service) LogCatalog(actor Actor, action string, bookID uint, title string, metadata map[string]any) {
	if s == nil {
		return
	}
	event := newEvent(actor, entities.AuditEventCatalog, action)
	event.Description = action + ": " + title
	event.EntityType = "book"
	event.EntityID = &bookID
	event.Metadata = encodeMetadata(metadata)

	s.LogAsync(event)
}

// LogLending records a borrow or return attempt. A non-nil err marks the
// event failed.
func (s *Service) LogLending(actor Actor, action string, bookID, borrowerID uint, err error) {
	if s == nil {
		return
	}
	event := newEvent(actor, entities.AuditEventLending, action)
	event.EntityType = "book"
	event.EntityID = &bookID
	event.Metadata = encodeMetadata(map[string]any{"borrower_id": borrowerID})
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLength)
	}

	s.LogAsync(event)
}

// LogAuth records an authentication event such as "login", "admin_login",
// "signup" or "logout".
func (s *Service) LogAuth(actor Actor, action, email string, success bool) {
	if s == nil {
		return
	}
	event := newEvent(actor, entities.AuditEventAuth, action)
	event.EntityType = "user"
	event.Description = email
	if actor.UserID > 0 {
		id := actor.UserID
		event.EntityID = &id
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// GetEvents retrieves a page of audit events.
func (s *Service) GetEvents(f audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(f)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (entities.AuditEventCounts, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func newEvent(actor Actor, eventType entities.AuditEventType, action string) *entities.AuditEvent {
	return &entities.AuditEvent{
		UserID:    actor.UserID,
		EventType: eventType,
		Action:    action,
		IPAddress: actor.IPAddress,
		UserAgent: truncate(actor.UserAgent, maxUserAgentLength),
		Status:    entities.AuditStatusSuccess,
	}
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
