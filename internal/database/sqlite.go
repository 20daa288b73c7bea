package database

import (
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kenn1ld/stop-killing-games-monitor/internal/store"
)

// Initialize opens the sqlite database and migrates the blob schema used
// by the versioned store.
func Initialize(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	if err := db.AutoMigrate(&store.Blob{}); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")
	return db, nil
}
