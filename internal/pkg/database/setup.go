package database

import (
	"fmt"
	"log"
	"time"

	"github.com/launchdeck/launchdeck/app/models"
	"github.com/launchdeck/launchdeck/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// SetupDatabase connects to MySQL and migrates the schema. When no credentials
// are configured the app stays up in a degraded mode: DB remains nil, webhook
// and dashboard handlers acknowledge requests without persisting anything.
func SetupDatabase() {
	user := env.GetEnv("DB_USER", "")
	name := env.GetEnv("DB_NAME", "")
	if user == "" || name == "" {
		log.Print("database not configured - webhook handlers are limited")
		return
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user,
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		name,
	)

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), &gorm.Config{
			// Duplicate-key races in the webhook user resolver are detected
			// via errors.Is(err, gorm.ErrDuplicatedKey).
			TranslateError: true,
		})
		if err == nil {
			Migrate(DB)
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// Migrate runs GORM auto-migration for all application tables.
func Migrate(db *gorm.DB) {
	if db == nil {
		return
	}
	db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Subscription{},
		&models.Payment{},
		&models.ActivityLog{},
	)
}

// GetDB returns the shared database handle, nil when running degraded.
func GetDB() *gorm.DB {
	return DB
}
