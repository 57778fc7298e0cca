package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-importer/internal/config"
	"github.com/dvloznov/ledger-importer/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runImport(log, os.Args[2:])
	case "batch":
		runBatch(log, os.Args[2:])
	case "config":
		runConfig(log, os.Args[2:])
	case "dict":
		runDict(log, os.Args[2:])
	case "presets":
		runPresets()
	case "runs":
		runRuns(log, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger Importer")
	fmt.Println("\nUsage:")
	fmt.Println("  ledgerctl <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  run       Transform one workbook (local path or gs://)")
	fmt.Println("  batch     Transform several workbooks concurrently")
	fmt.Println("  config    Show the configuration or set the default input")
	fmt.Println("  dict      List or check the account alias dictionary")
	fmt.Println("  presets   List the transform presets")
	fmt.Println("  runs      List recent import runs recorded in BigQuery")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'ledgerctl <command> -h' for more information on a command.")
}

// loadConfig loads the configuration file and re-levels the logger.
func loadConfig(log zerolog.Logger, path string) (*config.Config, zerolog.Logger) {
	cfg, err := config.NewFileProvider(path).Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	leveled, err := logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to info console logging")
	}
	return cfg, leveled
}
