package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/bookhive/internal/audit"
	"github.com/mrlokans/bookhive/internal/scheduler"
	"github.com/mrlokans/bookhive/internal/tasks"
)

// =============================================================================
// Background Work
// =============================================================================

// The scheduler enqueues onto the task queue.
var _ scheduler.TaskEnqueuer = (*tasks.Client)(nil)

// Audit cleanup deletes through the audit service.
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
