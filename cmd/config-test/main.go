package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"

	"github.com/chrissnell/daylight/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <daylight.yaml> -sqlite <daylight.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	sections := []struct {
		name         string
		yaml, sqlite any
	}{
		{"Insolation", yamlConfig.Calculation.Insolation, sqliteConfig.Calculation.Insolation},
		{"KEO", yamlConfig.Calculation.KEO, sqliteConfig.Calculation.KEO},
		{"Compliance", yamlConfig.Calculation.Compliance, sqliteConfig.Calculation.Compliance},
		{"Workers", yamlConfig.Calculation.Workers, sqliteConfig.Calculation.Workers},
		{"Storage", yamlConfig.Storage, sqliteConfig.Storage},
		{"REST server", yamlConfig.REST, sqliteConfig.REST},
		{"Logging", yamlConfig.Log, sqliteConfig.Log},
	}

	mismatches := 0
	for _, s := range sections {
		if reflect.DeepEqual(s.yaml, s.sqlite) {
			fmt.Printf("✓ %s matches\n", s.name)
			continue
		}
		mismatches++
		fmt.Printf("✗ %s differs\n", s.name)
		fmt.Printf("    YAML:   %s\n", describe(s.yaml))
		fmt.Printf("    SQLite: %s\n", describe(s.sqlite))
	}

	if mismatches > 0 {
		fmt.Printf("\n%d section(s) differ\n", mismatches)
		os.Exit(1)
	}
	fmt.Println("\nConfigurations are identical")
}

func describe(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
