// Package database provides the data access layer of the data service.
//
// # Architecture
//
// The database layer is organized into table-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Catalog rows
//	├── users/           # Accounts (credentials) and public profiles
//	├── userbooks/       # User to book relationships and reading progress
//	├── notifications/   # Per-user notifications
//	├── passcodes/       # One-time passcodes (otp_codes)
//	├── settings/        # Service settings
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type over a shared *gorm.DB:
//
//	db, err := database.NewDatabase("./libris.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	codesRepo := passcodes.NewRepository(db.DB)
//
//	book, err := booksRepo.GetBookByID(id)
//
// Lookups that find nothing return gorm.ErrRecordNotFound; mutations that
// address a single row report the affected row count so callers can tell
// "absent" apart from "failed".
package database
