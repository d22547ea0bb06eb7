package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/daylight/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite existing SQLite database")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <daylight.yaml> -sqlite <daylight.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	// Check if YAML file exists
	if _, err := os.Stat(*yamlFile); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error: YAML file does not exist: %s\n", *yamlFile)
		os.Exit(1)
	}

	// Check if SQLite file already exists
	if _, err := os.Stat(*sqliteFile); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: SQLite file already exists: %s\n", *sqliteFile)
		fmt.Fprintf(os.Stderr, "Use -force to overwrite or choose a different filename\n")
		os.Exit(1)
	}

	fmt.Printf("Converting YAML configuration to SQLite...\n")
	fmt.Printf("  Source: %s\n", *yamlFile)
	fmt.Printf("  Target: %s\n", *sqliteFile)

	if *dryRun {
		fmt.Println("DRY RUN - No changes will be made")
	}

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration...\n")
	configData, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML configuration: %v\n", err)
		os.Exit(1)
	}

	if *dryRun {
		printConfigSummary(configData)
		fmt.Println("DRY RUN complete - no database created")
		return
	}

	// Remove existing SQLite file if force is specified
	if *force {
		if err := os.Remove(*sqliteFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error removing existing SQLite file: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Writing configuration into SQLite database...\n")
	n, err := convert(*sqliteFile, configData)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration into SQLite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("  %d settings written\n", n)
	fmt.Printf("Conversion completed successfully!\n")
	fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", *sqliteFile)
}

// convert creates dbPath with the current settings schema and stores
// configData in it. It returns the number of settings written.
func convert(dbPath string, configData *config.ConfigData) (int, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	// The provider applies the embedded migrations when it opens the file
	provider, err := config.NewSQLiteProvider(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create SQLite provider: %w", err)
	}
	defer provider.Close()

	if err := provider.SaveConfig(configData); err != nil {
		return 0, fmt.Errorf("failed to save configuration: %w", err)
	}

	settings, err := provider.Settings()
	if err != nil {
		return 0, err
	}
	return len(settings), nil
}

func printConfigSummary(configData *config.ConfigData) {
	calc := configData.Calculation
	fmt.Println("\nConfiguration Summary:")
	fmt.Printf("Insolation: enabled=%v step=%vs shadow_model=%s min_duration=%q\n",
		calc.Insolation.Enabled, calc.Insolation.TimeStep, calc.Insolation.ShadowModel, calc.Insolation.MinDuration)
	fmt.Printf("KEO: enabled=%v grid_density=%v min_keo=%v\n", calc.KEO.Enabled, calc.KEO.GridDensity, calc.KEO.MinKEO)
	fmt.Printf("Strict compliance: %v, workers: %d\n", calc.Compliance.Strict, calc.Workers)

	fmt.Printf("\nStorage Backends:\n")
	if configData.Storage.SQLite != nil {
		fmt.Printf("  - SQLite: %s\n", configData.Storage.SQLite.Path)
	}
	if configData.Storage.TimescaleDB != nil {
		fmt.Printf("  - TimescaleDB: %s\n", configData.Storage.TimescaleDB.ConnectionString)
	}

	fmt.Printf("\nREST server: enabled=%v port=%d\n", configData.REST.Enabled, configData.REST.Port)
}
