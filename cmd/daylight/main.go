package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/chrissnell/daylight/internal/app"
	"github.com/chrissnell/daylight/internal/constants"
	"github.com/chrissnell/daylight/internal/log"
	"github.com/chrissnell/daylight/pkg/building"
	"github.com/chrissnell/daylight/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "", "Path to configuration source:\n\t\t\t  YAML: daylight.yaml\n\t\t\t  SQLite: daylight.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite\n\t\t\t  Built-in defaults are used when empty")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	buildingFile := flag.String("building", "", "Building document (YAML or JSON) to evaluate")
	dateFlag := flag.String("date", "", "Calculation date as YYYY-MM-DD; defaults to today in the building's time zone")
	serve := flag.Bool("serve", false, "Run the REST server instead of a one-shot calculation")
	jsonOut := flag.Bool("json", false, "Print the full result as JSON")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("daylight %s\n", constants.Version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfgData, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if cfgData.Log.File != "" {
		if err := log.InitWithFile(*debug, cfgData.Log.File); err != nil {
			log.Errorf("Failed to open log file: %v", err)
			os.Exit(1)
		}
	}

	application, err := app.New(cfgData, log.GetSugaredLogger())
	if err != nil {
		log.Errorf("Invalid calculation settings: %v", err)
		os.Exit(1)
	}

	if *serve {
		cfgData.REST.Enabled = true
		if err := application.Run(context.Background()); err != nil {
			log.Errorf("Application error: %v", err)
			os.Exit(1)
		}
		return
	}

	if *buildingFile == "" {
		fmt.Fprintln(os.Stderr, "Either -building or -serve is required. Run with -h for help.")
		os.Exit(2)
	}
	if err := calculate(application, *buildingFile, *dateFlag, *jsonOut); err != nil {
		log.Errorf("Calculation failed: %v", err)
		os.Exit(1)
	}
}

func calculate(application *app.App, buildingFile, dateFlag string, jsonOut bool) error {
	b, err := building.LoadFile(buildingFile)
	if err != nil {
		return err
	}

	date, err := calculationDate(dateFlag, b.Timezone)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := application.Calculate(ctx, b, date)
	if result == nil {
		return err
	}
	if err != nil {
		// The calculation itself succeeded; only archiving failed
		log.Warnf("%v", err)
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Compact())
	}
	return writeReport(os.Stdout, result)
}

// calculationDate parses YYYY-MM-DD, or returns today in the building's zone
func calculationDate(s, tz string) (time.Time, error) {
	if s == "" {
		now := time.Now()
		if loc, err := time.LoadLocation(tz); err == nil {
			now = now.In(loc)
		}
		return now, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func loadConfig(cfgFile, cfgBackend string) (*config.ConfigData, error) {
	if cfgFile == "" {
		return config.Defaults(), nil
	}
	filename, _ := filepath.Abs(cfgFile)

	var provider config.ConfigProvider
	var err error

	switch cfgBackend {
	case "yaml":
		provider = config.NewYAMLProvider(filename)
	case "sqlite":
		provider, err = config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
	}
	defer provider.Close()

	cfgData, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cfgData, nil
}
