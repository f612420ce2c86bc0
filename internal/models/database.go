package models

import (
	"fmt"
	"time"

	"github.com/yiback/gatherly/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, GormConfig(logger.Default.LogMode(logger.Warn)))
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// A single writer avoids "database is locked" under concurrent requests.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	DB = db
	return nil
}

// GormConfig stores timestamps in UTC so cursor comparisons stay consistent
// across drivers, and translates duplicate-key errors to gorm.ErrDuplicatedKey.
func GormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate creates or updates every table on db.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&Group{},
		&GroupMember{},
		&Event{},
		&Participant{},
		&Announcement{},
		&EventImage{},
		&NotificationLog{},
		&NotificationPreference{},
		&PushSubscription{},
		&LoginCode{},
		&OAuthState{},
		&SystemLog{},
	)
}

func GetDB() *gorm.DB {
	return DB
}
