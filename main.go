package main

import (
	"approvalflow/app"
	"approvalflow/config"
	"approvalflow/infra/tracing"
	"approvalflow/persistence"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Info("service start")

	closer, err := tracing.InitGlobalTracer()
	if err != nil {
		logrus.Fatalf("init tracer failed %v", err)
	}
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database conneciton failed %v", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	if err := app.Migrate(ds.GormDB(nil)); err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}

	settings, err := config.SettingsFromEnv()
	if err != nil {
		logrus.Fatalf("load settings failed %v", err)
	}
	defs, err := config.LoadDefinitions(settings.DefinitionsPath)
	if err != nil {
		logrus.Fatalf("load definitions failed %v", err)
	}

	a, err := app.Wire(settings, defs)
	if err != nil {
		logrus.Fatalf("wire approval engine failed %v", err)
	}
	if err := a.SeedUsers(ds.GormDB(nil), defs); err != nil {
		logrus.Fatalf("seed users failed %v", err)
	}
	if err := a.EnableIntegrations(); err != nil {
		logrus.Fatalf("enable integrations failed %v", err)
	}
	if err := a.StartJobs(); err != nil {
		logrus.Fatalf("start jobs failed %v", err)
	}
	defer a.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("service stop")
}
