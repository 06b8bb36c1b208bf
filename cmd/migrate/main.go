package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/wakfboard/backend/internal/infrastructure/config"
	"github.com/wakfboard/backend/internal/infrastructure/logger"
	"github.com/wakfboard/backend/internal/infrastructure/migration"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: migrate [flags] <command>

Commands:
  up                  apply all pending migrations
  down                roll back all migrations
  steps <n>           apply n migrations (negative rolls back)
  version             print current migration version
  force <version>     force the schema version without running migrations
  create <name>       create a new migration file pair
  list                list migration pairs in the migrations directory

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	var (
		path     = flag.String("path", "", "path to migrations directory (default: auto-discover)")
		logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	migrationsPath := *path
	if migrationsPath == "" {
		migrationsPath, err = discoverMigrationsPath()
		if err != nil {
			log.Fatal("could not find migrations directory; pass -path explicitly", zap.Error(err))
		}
	}

	if command == "create" {
		if flag.NArg() < 2 {
			log.Fatal("create requires a migration name")
		}
		name := flag.Arg(1)
		mf, err := migration.CreateMigration(migrationsPath, name, name)
		if err != nil {
			log.Fatal("failed to create migration", zap.Error(err))
		}
		log.Info("migration created",
			zap.String("up", mf.UpPath),
			zap.String("down", mf.DownPath),
		)
		return
	}

	if command == "list" {
		names, err := migration.ListMigrations(migrationsPath)
		if err != nil {
			log.Fatal("failed to list migrations", zap.Error(err))
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	m, err := migration.NewFromURL(cfg.Database.DSN(), migrationsPath, log)
	if err != nil {
		log.Fatal("failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if flag.NArg() < 2 {
			log.Fatal("steps requires a count")
		}
		var n int
		n, err = strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal("steps count must be an integer", zap.String("arg", flag.Arg(1)))
		}
		err = m.Steps(n)
	case "version":
		var version uint
		var dirty bool
		version, dirty, err = m.Version()
		if err == nil {
			log.Info("current migration version",
				zap.Uint("version", version),
				zap.Bool("dirty", dirty),
			)
		}
	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version")
		}
		var v int
		v, err = strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal("force version must be an integer", zap.String("arg", flag.Arg(1)))
		}
		err = m.Force(v)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
}

// discoverMigrationsPath looks for the migrations directory next to the
// executable and then relative to the working directory, which covers both
// deployed layouts and `go run ./cmd/migrate` from the repo root.
func discoverMigrationsPath() (string, error) {
	candidates := []string{"migrations", filepath.Join("backend", "migrations")}

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", fmt.Errorf("no migrations directory found in %v", candidates)
}
