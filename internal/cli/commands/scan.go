package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doclens-dev/doclens/internal/cli/config"
	"github.com/doclens-dev/doclens/internal/cli/ui"
	"github.com/doclens-dev/doclens/internal/kb"
	"github.com/doclens-dev/doclens/internal/sampler"
	"github.com/doclens-dev/doclens/internal/source/golang"
	"github.com/doclens-dev/doclens/internal/state"
)

var (
	scanType           string
	scanFormat         string
	scanSample         bool
	scanMaxDocs        int
	scanMaxCollections int
	scanPII            bool
	scanConnTimeout    time.Duration
	scanSinceSHA       string
)

// NewScanCommand creates the scan command
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [repository...]",
		Short: "Scan repositories and synchronize the knowledge base",
		Long: `Scan one or more source repositories for document-database usage and
synchronize the results into the knowledge base.

Repositories come from the command line, or from the 'repositories' list in
doclens.yml when none are given.

Scan types:
  full         process every file (default)
  incremental  process only files changed since the last synchronized commit
  integrity    verify knowledge-base consistency without extracting`,
		RunE: runScan,
	}

	cmd.Flags().StringVar(&scanType, "type", "full", "Scan type: full, incremental, or integrity")
	cmd.Flags().StringVar(&scanFormat, "format", "table", "Output format: json or table")
	cmd.Flags().BoolVar(&scanSample, "sample", false, "Sample live collections for observed schemas")
	cmd.Flags().IntVar(&scanMaxDocs, "max-docs", sampler.DefaultMaxDocuments, "Maximum documents sampled per collection")
	cmd.Flags().IntVar(&scanMaxCollections, "max-collections", sampler.DefaultMaxCollections, "Maximum collections sampled per run")
	cmd.Flags().BoolVar(&scanPII, "pii-detection", true, "Redact sensitive fields before computing sample statistics")
	cmd.Flags().DurationVar(&scanConnTimeout, "conn-timeout", sampler.DefaultTimeout, "Connection timeout for sampling")
	cmd.Flags().StringVar(&scanSinceSHA, "since-sha", "", "Incremental baseline commit (defaults to the last synchronized commit)")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanFormat != "json" && scanFormat != "table" {
		return fmt.Errorf("invalid format %q (expected json or table)", scanFormat)
	}
	st, err := kb.ParseScanType(scanType)
	if err != nil {
		valid := []string{string(kb.ScanFull), string(kb.ScanIncremental), string(kb.ScanIntegrity)}
		if best := ui.FindBestMatch(scanType, valid, nil); best != "" {
			return fmt.Errorf("%w, did you mean %q?", err, best)
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	repos := args
	if len(repos) == 0 {
		repos = cfg.Repositories
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repositories to scan: pass paths or set 'repositories' in doclens.yml")
	}

	logger, err := buildLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	store, err := kb.NewMongoStore(ctx, kb.MongoConfig{
		URI:      config.KBURI(cfg),
		Database: cfg.KnowledgeBase.Database,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	stateStore, err := openState(cfg.Scan.StatePath)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	opts := kb.Options{
		Workers:     cfg.Scan.Workers,
		FileWorkers: cfg.Scan.FileWorkers,
		State:       stateStore,
	}
	if scanSample || cfg.Sampling.Enabled {
		sampleFn, err := buildSampler(cmd, cfg, logger)
		if err != nil {
			return err
		}
		opts.Sample = sampleFn
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	var spinner *ui.Spinner
	if scanFormat == "table" {
		spinner = ui.NewSpinner(cmd.ErrOrStderr(), ui.SpinnerOptions{
			Message: fmt.Sprintf("Scanning %d repositories...", len(repos)),
			NoColor: noColor,
		})
		spinner.Start()
	}

	sync := kb.New(store, golang.New(), logger, opts)
	summary, err := sync.Run(ctx, kb.Request{
		Repositories: repos,
		Type:         st,
		SinceSHA:     scanSinceSHA,
	})
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		// An all-repositories-failed run still carries a recorded summary.
		if summary != nil {
			_ = printSummary(cmd, summary, noColor)
		}
		return err
	}

	if err := printSummary(cmd, summary, noColor); err != nil {
		return err
	}
	if summary.Status == kb.StatusPartialFailure {
		return fmt.Errorf("scan %s finished with repository failures", summary.ScanID)
	}
	return nil
}

func buildLogger(cmd *cobra.Command) (*zap.Logger, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func openState(path string) (*state.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	return state.Open(path)
}

// buildSampler assembles the sampling hook from config and flag overrides.
func buildSampler(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (kb.SampleFunc, error) {
	smOpts := sampler.Options{
		URI:           cfg.Sampling.URI,
		Database:      cfg.Sampling.Database,
		MaxDocuments:  cfg.Sampling.MaxDocuments,
		PIIDetection:  cfg.Sampling.PIIDetection,
		ExtraDenylist: cfg.Sampling.Denylist,
	}
	smOpts.MaxCollections = cfg.Sampling.MaxCollections
	smOpts.Timeout = time.Duration(cfg.Sampling.TimeoutSeconds) * time.Second

	if cmd.Flags().Changed("max-docs") {
		smOpts.MaxDocuments = scanMaxDocs
	}
	if cmd.Flags().Changed("max-collections") {
		smOpts.MaxCollections = scanMaxCollections
	}
	if cmd.Flags().Changed("pii-detection") {
		smOpts.PIIDetection = scanPII
	}
	if cmd.Flags().Changed("conn-timeout") {
		smOpts.Timeout = scanConnTimeout
	}
	if smOpts.URI == "" {
		return nil, fmt.Errorf("sampling requires 'sampling.uri' in doclens.yml")
	}
	if smOpts.Database == "" {
		return nil, fmt.Errorf("sampling requires 'sampling.database' in doclens.yml")
	}

	sm := sampler.New(smOpts, logger)
	return sm.Sample, nil
}

func printSummary(cmd *cobra.Command, summary *kb.ScanSummary, noColor bool) error {
	out := cmd.OutOrStdout()
	if scanFormat == "json" {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding summary: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	table := ui.NewTable(out, []string{
		"REPOSITORY", "STATUS", "TYPES", "COLLECTIONS", "QUERIES", "RELATIONSHIPS", "FILES",
	}, &ui.TableOptions{NoColor: noColor})
	for _, res := range summary.Repositories {
		status := string(res.Status)
		if res.Error != "" {
			status += ": " + res.Error
		}
		table.AddRow(
			res.Repository,
			status,
			strconv.Itoa(res.Types),
			strconv.Itoa(res.Collections),
			strconv.Itoa(res.Queries),
			strconv.Itoa(res.Relationships),
			strconv.Itoa(res.FilesScanned),
		)
	}
	table.Render()

	for _, health := range summary.Health {
		fmt.Fprintf(out, "\n%s: %s\n", health.Repository, health.Status)
		for _, v := range health.Violations {
			fmt.Fprintf(out, "  - [%s] %s\n", v.Kind, v.Description)
		}
	}
	fmt.Fprintf(out, "\nScan %s (%s) finished in %s\n",
		summary.ScanID, summary.ScanType, summary.Duration.Round(time.Millisecond))
	return nil
}
