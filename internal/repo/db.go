package repo

import (
	"KeeBridge/internal/model"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// InitDB открывает БД хранилища по DSN и применяет миграции.
// DSN вида postgres://... уходит в драйвер postgres, всё остальное считается путём SQLite.
func InitDB(dsn string) (*gorm.DB, error) {
	var dial gorm.Dialector
	isPostgres := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	if isPostgres {
		dial = postgres.Open(dsn)
	} else {
		// modernc.org/sqlite регистрирует драйвер "sqlite" без cgo
		dial = gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}
	}
	db, err := gorm.Open(dial, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open vault db: %w", err)
	}
	if !isPostgres {
		// SQLite не допускает параллельных писателей
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate создаёт таблицы хранилища.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Meta{}, &model.Group{}, &model.Entry{}, &model.Field{}); err != nil {
		return fmt.Errorf("migrate vault db: %w", err)
	}
	return nil
}
