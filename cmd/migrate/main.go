package main

import (
	"flag"
	"log"
	"os"

	"curiow-be/internal/config"
	"curiow-be/internal/model"
	"curiow-be/pkg/database"

	"github.com/fatih/color"
)

func main() {
	check := flag.Bool("check", false, "report missing tables without migrating")
	verbose := flag.Bool("v", false, "log every SQL statement")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, *verbose)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	models := model.DeepChatModels()
	migrator := db.Migrator()

	missing := 0
	for _, m := range models {
		stmt := db.Model(m).Statement
		if err := stmt.Parse(m); err != nil {
			log.Fatalf("parse model: %v", err)
		}
		table := stmt.Schema.Table
		if migrator.HasTable(m) {
			color.Green("  present  %s", table)
			continue
		}
		missing++
		color.Yellow("  missing  %s", table)
	}

	if *check {
		if missing > 0 {
			os.Exit(1)
		}
		return
	}

	if err := db.AutoMigrate(models...); err != nil {
		color.Red("AutoMigrate failed: %v", err)
		os.Exit(1)
	}
	color.Green("Migrated %d tables (%d created)", len(models), missing)
}
