// Package interfaces documents the seams between BookHive's components.
//
// # Interface Categories
//
// ## Background Work
//
//   - TaskEnqueuer: hands a task to the persistent queue (internal/scheduler/audit_cleanup.go)
//   - AuditEventCleaner: deletes audit events past retention (internal/tasks/cleanup_audit.go)
//
// Domain services (catalog, lending, auth, audit) are concrete types taking a
// *gorm.DB; tests substitute a temp-file SQLite database rather than mocks.
//
// # Adding a New Maintenance Task
//
//  1. Define the task and its queue in internal/tasks/:
//
//     type ReindexBooksTask struct{}
//
//     func (t ReindexBooksTask) Config() backlite.QueueConfig {
//         return backlite.QueueConfig{Name: "ReindexBooks", MaxAttempts: 3}
//     }
//
//  2. Register the queue in entrypoint.go:
//
//     taskClient.Register(tasks.NewReindexBooksQueue(db))
//
//  3. Enqueue it from a scheduler or handler through TaskEnqueuer.
//
// # Adding a New Database Domain
//
//  1. Create sub-package: internal/database/<domain>/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Register the model in database.Models so it is migrated.
//
// # Compile-Time Interface Checks
//
// Implementations are checked at compile time:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go.
package interfaces
