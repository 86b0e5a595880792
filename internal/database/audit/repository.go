// Package audit provides database operations for the audit trail.
package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/entities"
)

const defaultPageSize = 50

// Filter narrows an audit listing. Zero values match everything.
type Filter struct {
	UserID    uint
	EventType entities.AuditEventType
	Limit     int
	Offset    int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// GetEvents retrieves a page of events matching f, most recent first, along
// with the total number of matches.
func (r *Repository) GetEvents(f Filter) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if f.UserID > 0 {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// DeleteOldEvents removes audit events older than the specified time and
// reports how many of each type were removed.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (entities.AuditEventCounts, error) {
	counts := entities.AuditEventCounts{}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var rows []struct {
			EventType entities.AuditEventType
			Count     int64
		}
		err := tx.Model(&entities.AuditEvent{}).
			Select("event_type, COUNT(*) AS count").
			Where("created_at < ?", olderThan).
			Group("event_type").
			Scan(&rows).Error
		if err != nil || len(rows) == 0 {
			return err
		}

		if err := tx.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{}).Error; err != nil {
			return err
		}
		for _, row := range rows {
			counts[row.EventType] = row.Count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
