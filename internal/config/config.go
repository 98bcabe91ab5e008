// Package config loads tool settings from sqlscout.toml or the
// [tool.sqlscout] table of pyproject.toml, layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

// Config holds every tunable of a run. Fields absent from the loaded file
// keep their default values.
type Config struct {
	// Name contexts that mark a string as SQL-bearing.
	VariableContexts []string `toml:"variable_contexts"`
	FunctionContexts []string `toml:"function_contexts"`
	ClassContexts    []string `toml:"class_contexts"`
	MatchMode        string   `toml:"match_mode"`
	MinSQLLength     int      `toml:"min_sql_length"`

	// File discovery.
	FilePatterns       []string `toml:"file_patterns"`
	RawSQLFilePatterns []string `toml:"raw_sql_file_patterns"`
	ExcludePatterns    []string `toml:"exclude_patterns"`
	RespectGitignore   bool     `toml:"respect_gitignore"`
	IncludeHiddenFiles bool     `toml:"include_hidden_files"`

	// Execution.
	ParallelProcessing bool `toml:"parallel_processing"`
	MaxThreads         int  `toml:"max_threads"`

	// Incremental mode validates only files changed against a baseline.
	IncrementalMode bool   `toml:"incremental_mode"`
	BaselineBranch  string `toml:"baseline_branch"`
	IncludeStaged   bool   `toml:"include_staged"`

	// Output and validation.
	LogLevel        string            `toml:"loglevel"`
	Dialect         string            `toml:"dialect"`
	ParamMarkers    []string          `toml:"param_markers"`
	DialectMappings map[string]string `toml:"dialect_mappings"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		VariableContexts: []string{"*query*", "*sql*", "*statement*", "*stmt*"},
		FunctionContexts: []string{"execute", "executemany", "executescript", "read_sql*", "mogrify"},
		ClassContexts:    []string{},
		MatchMode:        "glob",
		MinSQLLength:     10,

		FilePatterns:       []string{"*.py", "*.pyi"},
		RawSQLFilePatterns: []string{"*.sql"},
		ExcludePatterns:    []string{},
		RespectGitignore:   true,
		IncludeHiddenFiles: false,

		ParallelProcessing: true,
		MaxThreads:         runtime.NumCPU(),

		IncrementalMode: false,
		BaselineBranch:  "main",
		IncludeStaged:   true,

		LogLevel:     "warn",
		Dialect:      "generic",
		ParamMarkers: []string{"%s", "?"},
		DialectMappings: map[string]string{
			"NOTNULL": "IS NOT NULL",
			"ISNULL":  "IS NULL",
		},
	}
}

// FileName is the dedicated config file looked up in the scan root.
const FileName = "sqlscout.toml"

// Load reads the configuration for a scan rooted at root. An explicit path
// wins; otherwise sqlscout.toml and then pyproject.toml are tried, and a
// missing file just yields the defaults.
func Load(root, explicit string, log *zap.Logger) (Config, error) {
	cfg := Default()

	if explicit != "" {
		if err := loadInto(&cfg, explicit, false); err != nil {
			return cfg, err
		}
		log.Debug("loaded configuration", zap.String("path", explicit))
		return cfg, cfg.validate()
	}

	// Discovered files degrade to the defaults when unusable; only an
	// explicitly requested file aborts the run.
	dedicated := filepath.Join(root, FileName)
	if fileExists(dedicated) {
		if err := loadInto(&cfg, dedicated, false); err != nil {
			log.Warn("ignoring unusable config file", zap.Error(err))
			cfg = Default()
		} else {
			log.Debug("loaded configuration", zap.String("path", dedicated))
		}
		return cfg, cfg.validate()
	}

	pyproject := filepath.Join(root, "pyproject.toml")
	if fileExists(pyproject) {
		if err := loadInto(&cfg, pyproject, true); err != nil {
			log.Warn("ignoring unusable config file", zap.Error(err))
			cfg = Default()
		} else {
			log.Debug("loaded configuration", zap.String("path", pyproject))
		}
	}
	return cfg, cfg.validate()
}

func loadInto(cfg *Config, path string, pyproject bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if pyproject {
		// Decoding into the pre-filled struct keeps defaults for absent keys.
		wrapper := struct {
			Tool struct {
				Sqlscout *Config `toml:"sqlscout"`
			} `toml:"tool"`
		}{}
		wrapper.Tool.Sqlscout = cfg
		if err := toml.Unmarshal(data, &wrapper); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		return nil
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.MinSQLLength < 0 {
		return fmt.Errorf("min_sql_length must not be negative, got %d", c.MinSQLLength)
	}
	if c.MaxThreads < 1 {
		c.MaxThreads = 1
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DefaultTOML is the commented starter file written by the init command.
const DefaultTOML = `# sqlscout configuration

# Name patterns that mark an assignment target as SQL-bearing.
variable_contexts = ["*query*", "*sql*", "*statement*", "*stmt*"]

# Function names whose string arguments are validated.
function_contexts = ["execute", "executemany", "executescript", "read_sql*", "mogrify"]

# Class names whose body treats every assignment as SQL-bearing.
class_contexts = []

# How the context patterns match: exact, contains, glob or regex.
match_mode = "glob"

# Reconstructed strings shorter than this are skipped.
min_sql_length = 10

# Which files to scan.
file_patterns = ["*.py", "*.pyi"]
raw_sql_file_patterns = ["*.sql"]
exclude_patterns = []
respect_gitignore = true
include_hidden_files = false

# Worker pool.
parallel_processing = true
# max_threads = 8

# Only check files changed against the baseline branch.
incremental_mode = false
baseline_branch = "main"
include_staged = true

# Validation.
dialect = "generic"
param_markers = ["%s", "?"]

[dialect_mappings]
NOTNULL = "IS NOT NULL"
ISNULL = "IS NULL"
`
