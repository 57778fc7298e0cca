// Package config loads and saves the importer's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/ledger-importer/internal/classify"
	"github.com/dvloznov/ledger-importer/internal/domain"
	"github.com/dvloznov/ledger-importer/internal/ledger"
	"github.com/dvloznov/ledger-importer/internal/logger"
)

// Dictionary sources.
const (
	SourceBuiltin  = "builtin"
	SourceFile     = "file"
	SourceBigQuery = "bigquery"
)

// Config is the importer configuration.
type Config struct {
	DefaultInput   string               `toml:"default_input"`
	Pipeline       PipelineConfig       `toml:"pipeline"`
	Classification ClassificationConfig `toml:"classification"`
	Report         ReportConfig         `toml:"report"`
	Columns        ColumnsConfig        `toml:"columns"`
	Vendors        []ledger.VendorRule  `toml:"vendors"`
	Memo           MemoConfig           `toml:"memo"`
	BigQuery       BigQueryConfig       `toml:"bigquery"`
	Worker         WorkerConfig         `toml:"worker"`
	Log            LogConfig            `toml:"log"`
}

// PipelineConfig selects the preset and overrides its flags. Unset
// overrides keep the preset's value.
type PipelineConfig struct {
	WindowMonths         int    `toml:"window_months"`
	Preset               string `toml:"preset"`
	OutputMode           string `toml:"output_mode,omitempty"`
	ReportOverrides      *bool  `toml:"report_overrides,omitempty"`
	ReportOnePerCategory *bool  `toml:"report_one_per_category,omitempty"`
	VendorRewrite        *bool  `toml:"vendor_rewrite,omitempty"`
	MemoExtraction       *bool  `toml:"memo_extraction,omitempty"`
}

// ClassificationConfig controls where the alias dictionary comes from.
type ClassificationConfig struct {
	FallbackCode     string `toml:"fallback_code"`
	DictionarySource string `toml:"dictionary_source"`
	DictionaryPath   string `toml:"dictionary_path,omitempty"`
}

// ReportConfig holds the service revenue override values.
type ReportConfig struct {
	AccountCode   string `toml:"account_code"`
	Marker        string `toml:"marker"`
	MarkerAmount  string `toml:"marker_amount"`
	DefaultAmount string `toml:"default_amount"`
}

// ColumnsConfig names the header searched for each column role.
type ColumnsConfig struct {
	Date               string `toml:"date"`
	ExpenseClass       string `toml:"expense_class"`
	ExpenseAccount     string `toml:"expense_account"`
	ExpenseAmount      string `toml:"expense_amount"`
	Vendor             string `toml:"vendor"`
	Memo               string `toml:"memo"`
	ExtractedReference string `toml:"extracted_reference"`
	Description        string `toml:"description"`
}

// MemoConfig holds the memo prefix that marks an extractable reference.
type MemoConfig struct {
	Prefix string `toml:"prefix"`
}

// BigQueryConfig enables run auditing and the bigquery dictionary source.
type BigQueryConfig struct {
	Project string `toml:"project,omitempty"`
	Dataset string `toml:"dataset"`
}

// WorkerConfig sizes the batch worker pool.
type WorkerConfig struct {
	Count      int `toml:"count"`
	MaxRetries int `toml:"max_retries"`
}

// LogConfig sets the log level and output format ("console" or "json").
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	report := ledger.DefaultReportSettings()
	names := ledger.DefaultColumnNames()
	return &Config{
		Pipeline: PipelineConfig{
			WindowMonths: 18,
			Preset:       "trader",
		},
		Classification: ClassificationConfig{
			FallbackCode:     classify.FallbackCode,
			DictionarySource: SourceBuiltin,
		},
		Report: ReportConfig{
			AccountCode:   report.AccountCode,
			Marker:        report.Marker,
			MarkerAmount:  report.MarkerAmount.StringFixed(2),
			DefaultAmount: report.DefaultAmount.StringFixed(2),
		},
		Columns: ColumnsConfig{
			Date:               names[domain.RoleDate],
			ExpenseClass:       names[domain.RoleExpenseClass],
			ExpenseAccount:     names[domain.RoleExpenseAccount],
			ExpenseAmount:      names[domain.RoleExpenseAmount],
			Vendor:             names[domain.RoleVendor],
			Memo:               names[domain.RoleMemo],
			ExtractedReference: names[domain.RoleExtractedReference],
			Description:        names[domain.RoleDescription],
		},
		Vendors: ledger.DefaultVendorRules(),
		Memo:    MemoConfig{Prefix: ledger.DefaultMemoPrefix},
		BigQuery: BigQueryConfig{
			Dataset: "finance",
		},
		Worker: WorkerConfig{Count: 2, MaxRetries: 3},
		Log:    LogConfig{Level: "info", Format: logger.FormatConsole},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Pipeline.WindowMonths < 0 {
		return fmt.Errorf("pipeline.window_months must not be negative, got %d", c.Pipeline.WindowMonths)
	}
	if _, err := ledger.LookupPreset(c.Pipeline.Preset); err != nil {
		return fmt.Errorf("pipeline.preset: %w", err)
	}
	if c.Pipeline.OutputMode != "" {
		if _, err := ledger.ParseOutputMode(c.Pipeline.OutputMode); err != nil {
			return fmt.Errorf("pipeline.output_mode: %w", err)
		}
	}
	if strings.TrimSpace(c.Classification.FallbackCode) == "" {
		return errors.New("classification.fallback_code must not be empty")
	}
	switch c.Classification.DictionarySource {
	case SourceBuiltin:
	case SourceFile:
		if c.Classification.DictionaryPath == "" {
			return errors.New("classification.dictionary_path is required for the file source")
		}
	case SourceBigQuery:
		if c.BigQuery.Project == "" {
			return errors.New("bigquery.project is required for the bigquery source")
		}
	default:
		return fmt.Errorf("classification.dictionary_source %q is not one of builtin, file, bigquery", c.Classification.DictionarySource)
	}
	if _, err := decimal.NewFromString(c.Report.MarkerAmount); err != nil {
		return fmt.Errorf("report.marker_amount: %w", err)
	}
	if _, err := decimal.NewFromString(c.Report.DefaultAmount); err != nil {
		return fmt.Errorf("report.default_amount: %w", err)
	}
	if c.Worker.Count < 1 {
		return fmt.Errorf("worker.count must be at least 1, got %d", c.Worker.Count)
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("worker.max_retries must not be negative, got %d", c.Worker.MaxRetries)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f := c.Log.Format; f != "" && f != logger.FormatConsole && f != logger.FormatJSON {
		return fmt.Errorf("log.format must be %q or %q, got %q", logger.FormatConsole, logger.FormatJSON, f)
	}
	return nil
}

// ColumnNames maps roles to configured header names, defaulting blanks.
func (c *Config) ColumnNames() map[domain.Role]string {
	names := ledger.DefaultColumnNames()
	set := func(role domain.Role, v string) {
		if strings.TrimSpace(v) != "" {
			names[role] = v
		}
	}
	set(domain.RoleDate, c.Columns.Date)
	set(domain.RoleExpenseClass, c.Columns.ExpenseClass)
	set(domain.RoleExpenseAccount, c.Columns.ExpenseAccount)
	set(domain.RoleExpenseAmount, c.Columns.ExpenseAmount)
	set(domain.RoleVendor, c.Columns.Vendor)
	set(domain.RoleMemo, c.Columns.Memo)
	set(domain.RoleExtractedReference, c.Columns.ExtractedReference)
	set(domain.RoleDescription, c.Columns.Description)
	return names
}

// EngineOptions builds ledger options for presetName, or for the configured
// preset when presetName is empty. Pipeline overrides are applied on top.
func (c *Config) EngineOptions(presetName string) (ledger.Options, ledger.Preset, error) {
	if presetName == "" {
		presetName = c.Pipeline.Preset
	}
	preset, err := ledger.LookupPreset(presetName)
	if err != nil {
		return ledger.Options{}, ledger.Preset{}, err
	}
	markerAmount, err := decimal.NewFromString(c.Report.MarkerAmount)
	if err != nil {
		return ledger.Options{}, ledger.Preset{}, fmt.Errorf("report.marker_amount: %w", err)
	}
	defaultAmount, err := decimal.NewFromString(c.Report.DefaultAmount)
	if err != nil {
		return ledger.Options{}, ledger.Preset{}, fmt.Errorf("report.default_amount: %w", err)
	}

	opts := ledger.DefaultOptions().WithPreset(preset)
	opts.WindowMonths = c.Pipeline.WindowMonths
	opts.FallbackCode = c.Classification.FallbackCode
	opts.Vendors = c.Vendors
	opts.MemoPrefix = c.Memo.Prefix
	opts.ColumnNames = c.ColumnNames()
	opts.Report = ledger.ReportSettings{
		AccountCode:   c.Report.AccountCode,
		Marker:        c.Report.Marker,
		MarkerAmount:  markerAmount,
		DefaultAmount: defaultAmount,
	}

	if c.Pipeline.OutputMode != "" {
		mode, err := ledger.ParseOutputMode(c.Pipeline.OutputMode)
		if err != nil {
			return ledger.Options{}, ledger.Preset{}, err
		}
		opts.OutputMode = mode
	}
	if c.Pipeline.ReportOverrides != nil {
		opts.ReportOverrides = *c.Pipeline.ReportOverrides
	}
	if c.Pipeline.ReportOnePerCategory != nil {
		opts.ReportOneRowPerCategory = *c.Pipeline.ReportOnePerCategory
	}
	if c.Pipeline.VendorRewrite != nil {
		opts.EnableVendorRewrite = *c.Pipeline.VendorRewrite
	}
	if c.Pipeline.MemoExtraction != nil {
		opts.EnableMemoExtraction = *c.Pipeline.MemoExtraction
	}
	return opts, preset, nil
}

// ApplyEnv overrides settings from LEDGER_* environment variables.
func ApplyEnv(c *Config, getenv func(string) string) error {
	if v := getenv("LEDGER_DEFAULT_INPUT"); v != "" {
		c.DefaultInput = v
	}
	if v := getenv("LEDGER_WINDOW_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_WINDOW_MONTHS: %w", err)
		}
		c.Pipeline.WindowMonths = n
	}
	if v := getenv("LEDGER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("LEDGER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := getenv("LEDGER_BQ_PROJECT"); v != "" {
		c.BigQuery.Project = v
	}
	return nil
}

// Provider loads and saves a Config.
type Provider interface {
	Load() (*Config, error)
	Save(*Config) error
}

// FileProvider stores the configuration as a TOML file.
type FileProvider struct {
	Path string
	// Getenv is used for environment overrides; nil means os.Getenv.
	Getenv func(string) string
}

// NewFileProvider returns a provider for path, or for DefaultPath when
// path is empty.
func NewFileProvider(path string) *FileProvider {
	if path == "" {
		path = DefaultPath()
	}
	return &FileProvider{Path: path}
}

// DefaultPath is config.toml under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "ledger-importer", "config.toml")
}

// Load reads the file, applies environment overrides and validates.
// A missing file yields the defaults.
func (p *FileProvider) Load() (*Config, error) {
	cfg, err := ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if err := ApplyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", p.Path, err)
	}
	return cfg, nil
}

// Save validates cfg and writes it, creating the parent directory.
func (p *FileProvider) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid config: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(p.Path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", p.Path, err)
	}
	return nil
}

// ReadFile decodes path over DefaultConfig without environment overrides.
func ReadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	defaults := cfg.Vendors
	cfg.Vendors = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if cfg.Vendors == nil {
		cfg.Vendors = defaults
	}
	return cfg, nil
}
