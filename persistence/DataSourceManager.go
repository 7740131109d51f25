package persistence

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"
	otgorm "github.com/smacker/opentracing-gorm"
)

var ActiveDataSourceManager *DataSourceManager

type DatabaseConfig struct {
	DriverType string
	DriverArgs string
}

type DataSourceManager struct {
	gormDB *gorm.DB

	DatabaseConfig *DatabaseConfig
}

// ParseDatabaseConfigFromEnv DB_DRIVER_TYPE=mysql DB_DRIVER_ARGS=root:root@(127.0.0.1:3306)/approvalflow?charset=utf8mb4&parseTime=True&loc=Local
func ParseDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	driverType := os.Getenv("DB_DRIVER_TYPE")
	if driverType == "" {
		driverType = "mysql"
	}
	driverArgs := os.Getenv("DB_DRIVER_ARGS")
	if driverArgs == "" {
		driverArgs = "root:root@(127.0.0.1:3306)/approvalflow?charset=utf8mb4&parseTime=True&loc=Local"
	}
	if driverType == "mysql" {
		if _, err := mysql.ParseDSN(driverArgs); err != nil {
			return nil, err
		}
	}
	return &DatabaseConfig{DriverType: driverType, DriverArgs: driverArgs}, nil
}

// PrepareMysqlDatabase creates the database named in driverArgs when it is absent.
func PrepareMysqlDatabase(driverArgs string) error {
	dsn, err := mysql.ParseDSN(driverArgs)
	if err != nil {
		return err
	}
	databaseName := dsn.DBName
	dsn.DBName = ""
	db, err := sql.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec("CREATE DATABASE IF NOT EXISTS `" + databaseName + "` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci")
	return err
}

func (m *DataSourceManager) Start() error {
	db, err := connect(m.DatabaseConfig)
	if err != nil {
		return err
	}
	m.gormDB = db
	if m.DatabaseConfig.DriverType == "sqlite3" {
		// a single connection keeps sqlite writers serialized
		m.gormDB.DB().SetMaxOpenConns(1)
	}
	otgorm.AddGormCallbacks(m.gormDB)
	if os.Getenv("GORM_LOG_MODE") == "true" {
		m.gormDB.LogMode(true)
	}
	return nil
}

func (m *DataSourceManager) Stop() {
	if m.gormDB != nil {
		if err := m.gormDB.Close(); err != nil {
			log.Printf("fialed to close DB: %v", err)
		}
		m.gormDB = nil
	}
}

// GormDB returns a fresh handle carrying the span found in ctx.
func (m *DataSourceManager) GormDB(ctx context.Context) *gorm.DB {
	if m.gormDB == nil {
		return nil
	}
	if ctx == nil {
		return m.gormDB.New()
	}
	return otgorm.SetSpanToGorm(ctx, m.gormDB.New())
}

func connect(config *DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(config.DriverType, config.DriverArgs)
	if err != nil {
		return nil, err
	}
	err = db.DB().Ping()
	if err != nil {
		return nil, err
	}
	return db, nil
}
