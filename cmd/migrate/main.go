package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chrissnell/daylight/internal/log"
	"github.com/chrissnell/daylight/internal/storage/sqlite"
	"github.com/chrissnell/daylight/pkg/config"
	"github.com/chrissnell/daylight/pkg/migrate"
	_ "modernc.org/sqlite" // SQLite driver
)

func main() {
	var (
		dbDSN         = flag.String("dsn", "", "SQLite database file")
		schema        = flag.String("schema", "config", "Embedded schema to manage: config, archive")
		command       = flag.String("command", "up", "Migration command: up, down, to, plan, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	provider, err := schemaProvider(*schema)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrator := migrate.NewMigrator(db, provider).WithLogger(log.GetSugaredLogger())

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down", "to", "plan":
		var target int
		target, err = parseTarget(*targetVersion, *command)
		if err != nil {
			break
		}
		switch *command {
		case "down":
			err = migrator.MigrateDown(ctx, target)
		case "to":
			err = migrator.MigrateTo(ctx, target)
		default:
			err = showPlan(ctx, migrator, target)
			if err == nil {
				return
			}
		}
	case "version":
		version, verr := migrator.Version(ctx)
		if verr != nil {
			log.Fatalf("Failed to get current version: %v", verr)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
		if err == nil {
			return
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

// schemaProvider returns the migrations embedded in the binary for name
func schemaProvider(name string) (*migrate.FSProvider, error) {
	switch name {
	case "config":
		return config.Migrations(), nil
	case "archive":
		return sqlite.Migrations(), nil
	default:
		return nil, fmt.Errorf("unknown schema %q, expected config or archive", name)
	}
}

// parseTarget reads -target. For to and plan, "latest" means the newest
// migration, and plan defaults to it.
func parseTarget(s, command string) (int, error) {
	if command != "down" && (s == "latest" || (s == "" && command == "plan")) {
		return migrate.Latest, nil
	}
	if s == "" {
		return 0, fmt.Errorf("-target flag is required for %s command", command)
	}
	target, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid target version: %w", err)
	}
	return target, nil
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	st, err := migrator.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Current version: %d\n", st.Current)
	fmt.Printf("Latest version:  %d\n", st.Latest)
	fmt.Printf("Pending migrations: %d\n", len(st.Pending))

	if len(st.Pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range st.Pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

// showPlan prints the steps "to" would run without touching the schema
func showPlan(ctx context.Context, migrator *migrate.Migrator, target int) error {
	steps, err := migrator.Plan(ctx, target)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Println("Nothing to do")
		return nil
	}
	for _, step := range steps {
		dir := "down"
		if step.Up {
			dir = "up"
		}
		fmt.Printf("  %-4s %d: %s\n", dir, step.Migration.Version, step.Migration.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -dsn string        SQLite database file (required)")
	fmt.Println("  -schema string     Embedded schema: config or archive (default: config)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to/plan commands, or latest")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  plan               List the steps 'to' would run without applying them")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn daylight.db -command up")
	fmt.Println("  migrate -dsn runs.db -schema archive -command status")
	fmt.Println("  migrate -dsn daylight.db -command plan -target 1")
	fmt.Println("  migrate -dsn daylight.db -command down -target 0")
}
