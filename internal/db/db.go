package db

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/suPer8Hu/yieldwise/internal/chat"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"github.com/suPer8Hu/yieldwise/internal/farm"
	"github.com/suPer8Hu/yieldwise/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens MySQL in production and a local SQLite file otherwise.
func Connect(cfg config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	if cfg.Production() {
		gdb, err := gorm.Open(mysql.Open(cfg.DBDSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		return gdb, nil
	}

	gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_pragma=foreign_keys(1)"), gcfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&farm.Plan{},
		&farm.Diagnosis{},
		&chat.PlanMessage{},
		&chat.DiagnosisMessage{},
		&chat.Job{},
	)
}

// Ping reports whether the database answers.
func Ping(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
