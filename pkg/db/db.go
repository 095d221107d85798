// Database connection and schema migration
package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the sqlite database at the given DSN. ":memory:" is
// accepted for tests.
func Open(dsn string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dsn, err)
	}
	return database, nil
}

// Migrate creates all core tables.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&Agent{},
		&KnowledgeLink{},
		&KnowledgeDocument{},
		&KnowledgeCustomEntry{},
		&Conversation{},
		&Message{},
		&QuestionCluster{},
		&ClusteredMessage{},
	)
}
