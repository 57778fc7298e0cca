package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-importer/internal/app"
	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/config"
	infraBQ "github.com/dvloznov/ledger-importer/internal/infra/bigquery"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
	"github.com/dvloznov/ledger-importer/internal/objectstore"
)

func runConfig(log zerolog.Logger, args []string) {
	if len(args) == 0 {
		log.Fatal().Msg("Usage: ledgerctl config show|set-default [-config FILE] [PATH]")
	}

	fs := flag.NewFlagSet("config "+args[0], flag.ExitOnError)
	cfgPath := fs.String("config", "", "Config file (defaults to the user config dir)")
	fs.Parse(args[1:])
	path := *cfgPath
	if path == "" {
		path = config.DefaultPath()
	}

	switch args[0] {
	case "show":
		cfg, _ := loadConfig(log, path)
		data, err := toml.Marshal(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode configuration")
		}
		fmt.Printf("# %s\n%s", path, data)

	case "set-default":
		if fs.NArg() != 1 {
			log.Fatal().Msg("Usage: ledgerctl config set-default [-config FILE] PATH")
		}
		input := fs.Arg(0)
		if !objectstore.IsGCSURI(input) {
			if _, err := os.Stat(input); err != nil {
				log.Fatal().Err(err).Msg("Default input is not readable")
			}
		}
		// Read without environment overrides so they are not persisted.
		cfg, err := config.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read configuration")
		}
		cfg.DefaultInput = input
		if err := config.NewFileProvider(path).Save(cfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to save configuration")
		}
		fmt.Printf("Default input set to %s\n", input)

	default:
		log.Fatal().Str("subcommand", args[0]).Msg("Unknown config subcommand")
	}
}

func runDict(log zerolog.Logger, args []string) {
	if len(args) == 0 {
		log.Fatal().Msg("Usage: ledgerctl dict list|check [-file FILE | -builtin NAME] [-config FILE]")
	}

	fs := flag.NewFlagSet("dict "+args[0], flag.ExitOnError)
	file := fs.String("file", "", "TOML dictionary to use instead of the configured source")
	builtin := fs.String("builtin", "", "Built-in dictionary to use instead of the configured source ("+strings.Join(classify.BuiltinNames(), ", ")+")")
	cfgPath := fs.String("config", "", "Config file (defaults to the user config dir)")
	fs.Parse(args[1:])

	cfg, log := loadConfig(log, *cfgPath)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	rules, err := dictionaryRules(ctx, cfg, *file, *builtin)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dictionary")
	}
	index, conflicts := classify.NewIndex(rules)

	switch args[0] {
	case "list":
		printAliases(os.Stdout, index)
	case "check":
		fmt.Printf("%d rules, %d aliases\n", len(rules), index.Len())
		for _, c := range conflicts {
			fmt.Printf("CONFLICT  %s\n", c)
		}
		if len(conflicts) > 0 {
			os.Exit(1)
		}
		fmt.Println("No conflicts.")
	default:
		log.Fatal().Str("subcommand", args[0]).Msg("Unknown dict subcommand")
	}
}

// dictionaryRules loads file or the named built-in dictionary when given,
// else the configured source.
func dictionaryRules(ctx context.Context, cfg *config.Config, file, builtin string) ([]classify.AliasRule, error) {
	if file != "" {
		return app.LoadRulesFile(file)
	}
	if builtin != "" {
		return classify.BuiltinRules(builtin)
	}
	if cfg.Classification.DictionarySource == config.SourceBigQuery {
		rows, err := infraBQ.ListAccountAliases(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset)
		if err != nil {
			return nil, err
		}
		return infraBQ.RulesFromAliases(rows), nil
	}
	return app.LoadRules(ctx, cfg, nil)
}

func printAliases(w io.Writer, index *classify.Index) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tALIAS")
	for _, a := range index.Aliases() {
		fmt.Fprintf(tw, "%s\t%s\n", a.Code, a.Phrase)
	}
	tw.Flush()
}

func runPresets() {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRESET\tSUFFIX\tDICTIONARY\tDESCRIPTION")
	for _, name := range ledger.PresetNames() {
		p, _ := ledger.LookupPreset(name)
		dict := p.Dictionary
		if dict == "" {
			dict = classify.BuiltinStandard
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Suffix, dict, p.Description)
	}
	tw.Flush()
}

func runRuns(log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of runs to show")
	cfgPath := fs.String("config", "", "Config file (defaults to the user config dir)")
	fs.Parse(args)

	cfg, log := loadConfig(log, *cfgPath)
	if cfg.BigQuery.Project == "" {
		log.Fatal().Msg("bigquery.project is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	runs, err := infraBQ.ListRecentImportRuns(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}
	printRuns(os.Stdout, runs)
}

func printRuns(w io.Writer, runs []*infraBQ.RunRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tPRESET\tROWS IN\tROWS OUT\tSOURCE\tERROR")
	for _, r := range runs {
		rowsIn, rowsOut := "-", "-"
		if r.RowsIn.Valid {
			rowsIn = fmt.Sprint(r.RowsIn.Int64)
		}
		if r.RowsOut.Valid {
			rowsOut = fmt.Sprint(r.RowsOut.Int64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedTS.Format("2006-01-02 15:04"), r.Status, r.Preset, rowsIn, rowsOut, r.SourceURI,
			strings.ReplaceAll(r.ErrorMessage, "\n", " "))
	}
	tw.Flush()
}

// printSummary prints the completion report of one import.
func printSummary(w io.Writer, source string, s *ledger.Summary) {
	fmt.Fprintf(w, "Processing complete: %s\n", source)
	fmt.Fprintf(w, "  Rows processed:        %d\n", s.Rows)
	if s.Classified+s.Unclassified > 0 {
		fmt.Fprintf(w, "  Accounts matched:      %d\n", s.Classified)
		fmt.Fprintf(w, "  Accounts unmatched:    %d\n", s.Unclassified)
	}
	if s.VendorRewrites > 0 {
		fmt.Fprintf(w, "  Vendors rewritten:     %d\n", s.VendorRewrites)
	}
	if s.ReferencesExtracted > 0 {
		fmt.Fprintf(w, "  References extracted:  %d\n", s.ReferencesExtracted)
	}
	if s.Kept+s.Removed() > 0 {
		fmt.Fprintf(w, "  Kept:                  %d\n", s.Kept)
		fmt.Fprintf(w, "  Removed (in window):   %d\n", s.RemovedWithinWindow)
		fmt.Fprintf(w, "  Removed (no category): %d\n", s.RemovedNoCategory)
		fmt.Fprintf(w, "  Removed (no date):     %d\n", s.RemovedNoDate)
	}
	if s.ReportRows > 0 {
		fmt.Fprintf(w, "  Report rows:           %d\n", s.ReportRows)
	}
	fmt.Fprintf(w, "  Rows written:          %d\n", s.OutputRows)
	fmt.Fprintf(w, "  Output:                %s\n", s.Output)
}
