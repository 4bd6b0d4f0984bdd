package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fablenest/rewards/models"
)

var db *gorm.DB

// InitDatabase establishes a connection to MySQL using configuration values and performs automatic migrations.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	cfg := Get()
	var dsn string
	if cfg.DatabaseURI != "" {
		dsn = cfg.DatabaseURI
	} else {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
	}

	// Configure GORM logger: derive level from app LogLevel and raise slow-sql threshold to reduce noise
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormCfg := &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	var err error
	db, err = gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("failed to get sql.DB: %v", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	// Recycle idle connections before the server-side wait_timeout claims them
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	// Ping at boot so network/auth problems surface before the first query
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	if err := db.AutoMigrate(modelDefs...); err != nil {
		log.Fatalf("auto migration failed: %v", err)
	}

	SeedDailyTasks(db)

	return db
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		// Suppress per-statement logs; keep warnings (including slow SQL)
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}

// SeedDailyTasks inserts the default task catalog when the table is empty.
// Operators manage the catalog afterwards; the ledger itself never writes it.
func SeedDailyTasks(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.DailyTask{}).Count(&count).Error; err != nil {
		log.Printf("daily task seed check failed: %v", err)
		return
	}
	if count > 0 {
		return
	}

	defaults := []models.DailyTask{
		{Name: "Daily Check-in", Description: "Open FableNest today", TaskType: models.TaskTypeDailyLogin, RequiredCount: 1, RewardCoins: 5, IsActive: true},
		{Name: "Chatterbox", Description: "Send 5 messages to any character", TaskType: models.TaskTypeSendMessage, RequiredCount: 5, RewardCoins: 10, IsActive: true},
		{Name: "Social Butterfly", Description: "Start a conversation with a new character", TaskType: models.TaskTypeNewConversation, RequiredCount: 1, RewardCoins: 15, IsActive: true},
		{Name: "Creator", Description: "Create a new character", TaskType: models.TaskTypeCreateCharacter, RequiredCount: 1, RewardCoins: 25, IsActive: true},
	}
	if err := db.Create(&defaults).Error; err != nil {
		log.Printf("daily task seed failed: %v", err)
	}
}
