package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/libris/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the SQLite file at dbPath and migrates every table the
// data service owns.
func NewDatabase(dbPath string) (*Database, error) {
	return open(dbPath, logger.Warn)
}

// NewQuietDatabase is NewDatabase without SQL logging, for tests and CLI
// commands that print their own output.
func NewQuietDatabase(dbPath string) (*Database, error) {
	return open(dbPath, logger.Silent)
}

func open(dbPath string, level logger.LogLevel) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Account{},
		&entities.User{},
		&entities.Book{},
		&entities.UserBook{},
		&entities.Notification{},
		&entities.Passcode{},
		&entities.Setting{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// dsn adds the pragmas concurrent writers need unless the caller already
// supplied query parameters.
func dsn(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on"
}
