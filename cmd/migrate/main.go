package main

import (
	"log"

	"letterbox/internal/app/bootstrap"
)

func main() {
	pg, logger, err := bootstrap.BuildMigrator()
	if err != nil {
		log.Fatalf("bootstrap migrate failed: %v", err)
	}

	err = pg.Migrate(logger)
	_ = pg.Close()
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
}
