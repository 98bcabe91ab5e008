package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sqlscout/internal/config"
	"sqlscout/internal/finder"
	"sqlscout/internal/model"
	"sqlscout/internal/pattern"
	"sqlscout/internal/reporter"
	"sqlscout/internal/scanner"
	"sqlscout/internal/validator"
)

var (
	configPath  string
	logLevel    string
	dialect     string
	excludes    []string
	threads     int
	plain       bool
	incremental bool
	baseline    string
	noGitignore bool
	hidden      bool
)

// errIssuesFound keeps the exit status at 1 without printing a second
// error line; the reporter already showed the findings.
var errIssuesFound = errors.New("issues found")

var rootCmd = &cobra.Command{
	Use:   "sqlscout [path]",
	Short: "Find and validate SQL strings embedded in Python code",
	Long: `sqlscout statically scans Python source for strings that look like SQL,
reconstructs them through concatenation, %-formatting, .format() calls and
f-strings, and checks the result against a SQL grammar. Invalid SQL is
reported with the file, line and column it was built at.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		return runCheck(cmd, root)
	},
}

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented sqlscout.toml with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(config.FileName); err == nil && !forceInit {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.FileName)
		}
		if err := os.WriteFile(config.FileName, []byte(config.DefaultTOML), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", config.FileName, err)
		}
		fmt.Printf("Wrote %s\n", config.FileName)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a sqlscout.toml (default: discovered in the scan root)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "loglevel", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&dialect, "dialect", "d", "", "SQL dialect to validate against")
	rootCmd.Flags().StringSliceVarP(&excludes, "exclude", "e", nil, "Additional glob patterns to exclude from the scan")
	rootCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Number of worker threads (default: number of CPUs)")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Disable colored output")
	rootCmd.Flags().BoolVarP(&incremental, "incremental", "i", false, "Only check files changed against the baseline branch")
	rootCmd.Flags().StringVar(&baseline, "baseline", "", "Baseline branch for incremental mode")
	rootCmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "Do not honor .gitignore files")
	rootCmd.Flags().BoolVar(&hidden, "hidden", false, "Scan hidden files and directories")

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing config file")

	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errIssuesFound) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func runCheck(cmd *cobra.Command, root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", root)
	}

	log, err := newLogger("warn")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root, configPath, log)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)

	// Rebuild at the effective level now that config and flags are merged.
	log, err = newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	if plain {
		color.NoColor = true
	}

	mode := pattern.ParseMode(cfg.MatchMode, log)
	vars := pattern.Compile(cfg.VariableContexts, mode, log)
	funcs := pattern.Compile(cfg.FunctionContexts, mode, log)
	classes := pattern.Compile(cfg.ClassContexts, mode, log)
	dia := validator.DialectFromString(cfg.Dialect, log)

	ctx := context.Background()

	walker := scanner.NewFileWalker(
		cfg.FilePatterns, cfg.RawSQLFilePatterns, cfg.ExcludePatterns,
		cfg.IncludeHiddenFiles, cfg.RespectGitignore, root, log)
	files, errChan := walker.Walk(ctx, root)

	if cfg.IncrementalMode {
		changed, err := scanner.ChangedFiles(ctx, root, cfg.BaselineBranch, cfg.IncludeStaged, log)
		if err != nil {
			log.Warn("incremental mode unavailable, scanning everything", zap.Error(err))
		} else {
			files = scanner.FilterChanged(files, changed)
		}
	}

	concurrency := cfg.MaxThreads
	if !cfg.ParallelProcessing {
		concurrency = 1
	}
	pool := scanner.NewWorkerPool(concurrency, func() scanner.Processor {
		return &fileProcessor{
			finder:    finder.New(vars, funcs, classes, cfg.MinSQLLength, log),
			validator: validator.New(dia, cfg.ParamMarkers, cfg.DialectMappings, log),
		}
	})
	results := pool.Start(ctx, files)

	go func() {
		for err := range errChan {
			log.Error("scan failed", zap.Error(err))
		}
	}()

	var diags []model.Diagnostic
	scanned, failed := 0, 0
	for res := range results {
		if res.Error != nil {
			log.Warn("skipping file", zap.String("file", res.File), zap.Error(res.Error))
			failed++
			continue
		}
		scanned++
		diags = append(diags, res.Diagnostics...)
	}
	log.Info("scan complete",
		zap.Int("files", scanned), zap.Int("skipped", failed), zap.Int("issues", len(diags)))

	var rpt model.Reporter = reporter.NewConsoleReporter()
	if err := rpt.Report(diags); err != nil {
		return fmt.Errorf("reporting failed: %w", err)
	}

	if len(diags) > 0 {
		return errIssuesFound
	}
	return nil
}

// fileProcessor analyzes and validates one file at a time. It holds the
// per-worker parser and validator instances.
type fileProcessor struct {
	finder    *finder.Finder
	validator *validator.Validator
}

func (p *fileProcessor) Process(ctx context.Context, file scanner.WalkedFile) (*model.FileReport, []model.Diagnostic, error) {
	src, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file: %w", err)
	}

	var report *model.FileReport
	if file.Kind == scanner.KindRawSQL {
		report = p.finder.AnalyzeRawSQL(file.Path, src)
	} else {
		report, err = p.finder.AnalyzeSource(ctx, file.Path, src)
		if err != nil {
			return nil, nil, err
		}
	}
	return report, p.validator.ValidateAll(report), nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dialect") {
		cfg.Dialect = dialect
	}
	if cmd.Flags().Changed("exclude") {
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, excludes...)
	}
	if cmd.Flags().Changed("threads") {
		cfg.MaxThreads = threads
	}
	if cmd.Flags().Changed("incremental") {
		cfg.IncrementalMode = incremental
	}
	if cmd.Flags().Changed("baseline") {
		cfg.BaselineBranch = baseline
	}
	if cmd.Flags().Changed("no-gitignore") {
		cfg.RespectGitignore = !noGitignore
	}
	if cmd.Flags().Changed("hidden") {
		cfg.IncludeHiddenFiles = hidden
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}
