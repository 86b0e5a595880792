// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go  # Connection setup (sqlite or postgres) and migrations
//	├── books/       # Catalog records, identity lookup, quantity updates
//	├── loans/       # Loan ledger
//	├── users/       # User accounts
//	├── audit/       # Audit trail
//	└── dbtest/      # Migrated throwaway databases for tests
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type bound to a *gorm.DB. Passing a
// transaction handle scopes every call to that transaction:
//
//	db, err := database.NewDatabase(cfg.Database)
//
//	err = db.DB.Transaction(func(tx *gorm.DB) error {
//		ok, err := books.NewRepository(tx).DecrementQuantity(bookID)
//		...
//		return loans.NewRepository(tx).Create(loan)
//	})
//
// Lookups return gorm.ErrRecordNotFound unwrapped so callers can map it with
// errors.Is.
package database
