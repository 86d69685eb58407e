package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AdInsights/app/models"
	"github.com/ManuelReschke/AdInsights/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Models lists every table managed by AutoMigrate, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ProviderAccount{},
		&models.Integration{},
		&models.CampaignFact{},
		&models.SubscriptionPlan{},
		&models.Subscription{},
		&models.BillingWebhookEvent{},
	}
}

// DSN returns DATABASE_URL when set, otherwise a MySQL DSN built from the DB_* variables.
// Dates are stored and read in UTC.
func DSN() string {
	if dsn := env.GetEnv("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=UTC"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

func SetupDatabase() {
	var err error
	dsn := DSN()

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,   // data source name
			DefaultStringSize:         256,   // default size for string fields
			DisableDatetimePrecision:  true,  // disable datetime precision, which not supported before MySQL 5.6
			DontSupportRenameIndex:    true,  // drop & create when rename index, rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // `change` when rename column, rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on currently MySQL version
		}), &gorm.Config{
			NowFunc:        func() time.Time { return time.Now().UTC() },
			TranslateError: true,
		})
		if err == nil {
			if mErr := DB.AutoMigrate(Models()...); mErr != nil {
				log.Printf("[Database] AutoMigrate failed: %v", mErr)
			}
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retry number %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
