package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cashback-service/internal/config"
	"cashback-service/internal/models"
)

var DB *gorm.DB

const transactionViewSQL = `CREATE OR REPLACE VIEW v_affiliate_transactions AS
SELECT t.*,
       p.name AS partner_name,
       p.logo AS partner_logo,
       p.url AS partner_url,
       p.base_rate AS partner_base_rate,
       u.wallet_address AS user_wallet_address
FROM affiliate_transactions t
LEFT JOIN partners p ON p.id = t.partner_id
LEFT JOIN wallet_users u ON u.id = t.user_id`

// DSN builds a connection string for the configured driver. DATABASE_URL wins
// when set.
func DSN(cfg *config.AppConfig) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	if cfg.DBDriver == "postgres" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// Open connects with duplicate-key errors translated to gorm.ErrDuplicatedKey.
func Open(driver, dsn string, maxConns int, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql", "":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
		sqlDB.SetMaxIdleConns(maxConns / 2)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func Connect(cfg *config.AppConfig) {
	var err error
	DB, err = Open(cfg.DBDriver, DSN(cfg), cfg.DBMaxConns, logger.Warn)
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}

	logrus.WithField("driver", cfg.DBDriver).Info("Database connection established")
}

// AutoMigrate creates or updates the tables and the transaction view.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.WalletUser{},
		&models.Partner{},
		&models.FanToken{},
		&models.AffiliateTransaction{},
		&models.PostbackLog{},
		&models.StoreClick{},
	)
	if err != nil {
		return err
	}
	return db.Exec(transactionViewSQL).Error
}

func Migrate() {
	if err := AutoMigrate(DB); err != nil {
		logrus.Fatal("Failed to migrate database: ", err)
	}
	logrus.Info("Database migration completed")
}
