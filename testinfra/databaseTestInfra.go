package testinfra

import (
	"approvalflow/persistence"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

type TestDatabase struct {
	TestDatabaseName string
	DS               *persistence.DataSourceManager

	file string
}

// StartTestDatabase uses mysql when TEST_MYSQL_SERVICE=root:root@(127.0.0.1:3306) is set,
// otherwise a throwaway sqlite file.
func StartTestDatabase(baseName string) *TestDatabase {
	databaseName := baseName + "_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")
	if mysqlSvc := os.Getenv("TEST_MYSQL_SERVICE"); mysqlSvc != "" {
		return startMysqlTestDatabase(mysqlSvc, databaseName)
	}

	file := filepath.Join(os.TempDir(), databaseName+".db")
	dbConfig := &persistence.DatabaseConfig{DriverType: "sqlite3", DriverArgs: file + "?_busy_timeout=5000"}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database conneciton failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds, file: file}
}

func startMysqlTestDatabase(mysqlSvc, databaseName string) *TestDatabase {
	dbConfig := &persistence.DatabaseConfig{
		DriverType: "mysql", DriverArgs: mysqlSvc + "/" + databaseName + "?charset=utf8mb4&parseTime=True&loc=Local&timeout=5s",
	}
	// create database (no conflict)
	if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
		log.Fatalf("failed to prepare database %v\n", err)
	}
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		defer ds.Stop()
		log.Fatalf("database conneciton failed %v\n", err)
	}
	return &TestDatabase{TestDatabaseName: databaseName, DS: ds}
}

func StopTestDatabase(testDatabase *TestDatabase) {
	if testDatabase == nil || testDatabase.DS == nil {
		return
	}
	if testDatabase.file == "" && testDatabase.DS.GormDB(nil) != nil {
		if err := testDatabase.DS.GormDB(nil).Exec("DROP DATABASE " + testDatabase.TestDatabaseName).Error; err != nil {
			log.Println("failed to drop test database: " + testDatabase.TestDatabaseName)
		} else {
			log.Println("test database " + testDatabase.TestDatabaseName + " dropped")
		}
	}
	testDatabase.DS.Stop()
	if testDatabase.file != "" {
		_ = os.Remove(testDatabase.file)
	}
}
