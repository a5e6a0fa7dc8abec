package main

import (
	"errors"
	"log"
	"os"

	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/config"
	"git.mci.dev/mse/sre/phoenix/golang/callboard/internal/database"
	"github.com/golang-migrate/migrate/v4"
)

const validArgsLen = 2

func main() {
	if len(os.Args) < validArgsLen {
		log.Fatal("usage: up | down")
	}

	migrator, err := database.NewMigrator(config.Conf.StorePath)
	if err != nil {
		log.Fatal(err)
	}

	cmd := os.Args[1]

	switch cmd {
	case "up":
		err = migrator.Up()
	case "down":
		err = migrator.Steps(-1)
	default:
		log.Fatal("unknown command")
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal(err)
	}

	version, dirty, _ := migrator.Version()
	log.Printf("migration complete. store=%s version=%d dirty=%v", config.Conf.StorePath, version, dirty)
}
