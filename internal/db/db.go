package db

import (
	"fmt"
	"log"
	"lumina/internal/models"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Init 连接数据库并迁移，失败直接退出
func Init(dsn string) {
	var err error
	DB, err = Open(dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
}

// Open 根据 DSN 选择驱动：postgres:// 或 host=... 使用 Postgres，其余视为 SQLite 文件路径
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}

	var dialector gorm.Dialector
	if IsPostgres(dsn) {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if !IsPostgres(dsn) {
		// SQLite 单写者
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	log.Println("Database connection established")

	if err := conn.AutoMigrate(&models.Blob{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Println("Database migration completed")
	return conn, nil
}

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
