package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-fetch-images/config"
	"github.com/aluiziolira/go-fetch-images/fetcher"
	"github.com/aluiziolira/go-fetch-images/models"
	"github.com/aluiziolira/go-fetch-images/parser"
	"github.com/aluiziolira/go-fetch-images/pipeline"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const separator = "--------------------------------------------------"

type options struct {
	configFile       string
	urls             string
	outputDir        string
	ledgerName       string
	timeout          time.Duration
	maxBytes         int64
	enforceBodyLimit bool
	reportFile       string
	reportFormat     string
	metricsAddr      string
	verbose          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("fetcher", flag.ContinueOnError)
	defaults := config.DefaultConfig()
	opts := options{}
	fs.StringVar(&opts.configFile, "config", "", "YAML config file")
	fs.StringVar(&opts.urls, "urls", "", "Comma separated image URLs")
	fs.StringVar(&opts.outputDir, "output-dir", defaults.OutputDir, "Directory for fetched images")
	fs.StringVar(&opts.ledgerName, "ledger", defaults.LedgerName, "Name of the hash ledger inside the output directory")
	fs.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Per-request timeout")
	fs.Int64Var(&opts.maxBytes, "max-bytes", defaults.MaxBytes, "Maximum image size in bytes")
	fs.BoolVar(&opts.enforceBodyLimit, "enforce-body-limit", defaults.EnforceBodyLimit, "Stop reading bodies past the size limit even when Content-Length is missing")
	fs.StringVar(&opts.reportFile, "report", "", "Write a per-URL report to this file")
	fs.StringVar(&opts.reportFormat, "report-format", defaults.ReportFormat, "Report format: csv, json, or dual")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&opts.verbose, "v", false, "Enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := buildConfig(fs, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	urls := collectURLs(opts.urls, fs.Args(), cfg.URLs)
	if len(urls) == 0 {
		line, err := prompt(stdin, stdout)
		if err != nil {
			slog.Error("reading urls", slog.Any("error", err))
			return 1
		}
		urls = parser.ParseURLList(line)
	}
	if len(urls) == 0 {
		fmt.Fprintln(stdout, "✗ No URLs provided. Operation cancelled.")
		return 0
	}

	store, err := pipeline.Open(cfg.OutputDir, cfg.LedgerName, cfg.LedgerCacheSize)
	if err != nil {
		slog.Error("preparing output directory", slog.Any("error", err))
		return 1
	}
	fmt.Fprintf(stdout, "✓ %s directory ready\n\n", cfg.OutputDir)

	f, err := fetcher.NewFetcher(cfg)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		return 1
	}

	p := pipeline.NewPipeline(f, store)
	p.Metrics = f.Metrics
	p.OnRecord = func(rec *models.Record) { printRecord(stdout, rec, len(urls)) }

	if cfg.ReportFile != "" {
		writer, err := pipeline.NewReportWriter(cfg.ReportFormat, cfg.ReportFile)
		if err != nil {
			slog.Error("creating report writer", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := writer.Close(); err != nil {
				slog.Error("close report", slog.Any("error", err))
			}
		}()
		p.Writer = writer
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, f.Metrics)

	start := time.Now()
	summary, err := p.Run(ctx, urls)
	if err != nil {
		slog.Error("run report incomplete", slog.Any("error", err))
	}
	checkReport(p.Writer, cfg.ReportFile)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(stdout, summary, time.Since(start), cfg.OutputDir)
	return 0
}

// checkReport validates the report before it is closed. A bad report is
// logged; the batch itself already completed.
func checkReport(writer pipeline.OutputWriter, report string) error {
	if writer == nil {
		return nil
	}
	if err := writer.Validate(); err != nil {
		slog.Error("report validation failed", slog.String("report", report), slog.Any("error", err))
		return err
	}
	return nil
}

// buildConfig layers defaults, the optional YAML file, environment
// variables and explicitly set flags, in that order.
func buildConfig(fs *flag.FlagSet, opts options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		if err := cfg.LoadFile(opts.configFile); err != nil {
			return nil, err
		}
	}

	if value, ok := config.EnvString("FETCHER_OUTPUT_DIR"); ok {
		cfg.OutputDir = value
	}
	if value, ok := config.EnvString("FETCHER_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok, err := config.EnvDuration("FETCHER_TIMEOUT"); err != nil {
		return nil, fmt.Errorf("invalid FETCHER_TIMEOUT: %w", err)
	} else if ok {
		cfg.Timeout = value
	}
	if value, ok, err := config.EnvInt("FETCHER_MAX_BYTES"); err != nil {
		return nil, fmt.Errorf("invalid FETCHER_MAX_BYTES: %w", err)
	} else if ok {
		cfg.MaxBytes = value
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "output-dir":
			cfg.OutputDir = opts.outputDir
		case "ledger":
			cfg.LedgerName = opts.ledgerName
		case "timeout":
			cfg.Timeout = opts.timeout
		case "max-bytes":
			cfg.MaxBytes = opts.maxBytes
		case "enforce-body-limit":
			cfg.EnforceBodyLimit = opts.enforceBodyLimit
		case "report":
			cfg.ReportFile = opts.reportFile
		case "report-format":
			cfg.ReportFormat = strings.ToLower(opts.reportFormat)
		case "metrics-addr":
			cfg.MetricsAddr = opts.metricsAddr
		case "v":
			cfg.Verbose = opts.verbose
		}
	})
	return cfg, nil
}

// collectURLs prefers -urls and positional arguments over URLs from the
// config file.
func collectURLs(flagValue string, args []string, fromConfig []string) []string {
	urls := parser.ParseURLList(flagValue)
	for _, arg := range args {
		urls = append(urls, parser.ParseURLList(arg)...)
	}
	if len(urls) > 0 {
		return urls
	}
	for _, u := range fromConfig {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

func prompt(stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprintln(stdout, "Welcome to the Ubuntu Image Fetcher")
	fmt.Fprintln(stdout, "A tool for mindfully collecting images from the web")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Ubuntu Principles: Community, Respect, Sharing, Practicality")
	fmt.Fprintln(stdout, separator)
	fmt.Fprint(stdout, "Please enter image URLs (separate multiple URLs with commas): ")

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return line, nil
}

func printRecord(w io.Writer, rec *models.Record, total int) {
	fmt.Fprintf(w, "Processing URL %d of %d: %s\n", rec.Index, total, rec.URL)
	switch rec.Outcome {
	case models.OutcomeStored:
		fmt.Fprintf(w, "  ✓ Successfully fetched: %s (%s)\n", rec.Path, humanize.Bytes(uint64(rec.Bytes)))
	case models.OutcomeDuplicate:
		fmt.Fprintf(w, "  ⚠ Duplicate image detected. Skipping: %s\n", rec.Detail)
	default:
		fmt.Fprintf(w, "  ✗ %s: %s\n", errorHeadline(rec.Category), rec.Detail)
	}
	fmt.Fprintln(w)
}

func errorHeadline(category string) string {
	switch category {
	case "invalid_url":
		return "Invalid URL format"
	case "non_image":
		return "URL does not point to an image"
	case "too_large":
		return "File too large"
	case "storage":
		return "Could not save image"
	case "timeout", "connection", "forbidden", "not_found", "rate_limited", "http_status", "bad_header":
		return "Connection error"
	default:
		return "An error occurred"
	}
}

func printSummary(w io.Writer, summary *models.RunSummary, duration time.Duration, outputDir string) {
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "Download Summary:")
	fmt.Fprintf(w, "✓ Successful downloads: %d\n", summary.Successful)
	fmt.Fprintf(w, "⚠ Duplicates skipped: %d\n", summary.Duplicates)
	fmt.Fprintf(w, "✗ Errors encountered: %d\n", summary.Errors)
	fmt.Fprintf(w, "  Stored:   %s in %s\n", humanize.Bytes(uint64(summary.StoredBytes)), outputDir)
	fmt.Fprintf(w, "  Duration: %v\n", duration.Round(time.Millisecond))
	if summary.Interrupted {
		processed := summary.Successful + summary.Duplicates + summary.Errors
		fmt.Fprintf(w, "  Interrupted after %d of %d URLs\n", processed, summary.Requested)
	}

	if summary.Successful > 0 {
		fmt.Fprintln(w, "\nConnection strengthened. Community enriched.")
	}
}

func startMetricsServer(addr string, metrics *fetcher.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

// newLogger writes to stderr so stdout stays reserved for the console
// report. Only warnings and errors are shown unless verbose is set.
func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
