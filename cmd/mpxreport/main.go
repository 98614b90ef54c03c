package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mpxreport/internal/app"
	"mpxreport/internal/config"
	"mpxreport/internal/infrastructure"
	"mpxreport/internal/services"
	"mpxreport/pkg/contracts"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		os.Exit(1)
	}
}

// options holds the command line flags
type options struct {
	configPath string
	source     string
	outDir     string
	formats    string
	addr       string
	serve      bool
	version    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&opts.source, "source", "", "line-list URL or local CSV path (defaults to the published dataset)")
	fs.StringVar(&opts.outDir, "out", "", "directory reports are written to")
	fs.StringVar(&opts.formats, "format", "", "comma separated output formats: xlsx, csv")
	fs.StringVar(&opts.addr, "addr", "", "listen address in serve mode")
	fs.BoolVar(&opts.serve, "serve", false, "run the HTTP API instead of generating one report")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

// loadConfig loads the configuration and applies flag overrides on top
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	if opts.source != "" {
		cfg.Source.Location = opts.source
	}
	if opts.outDir != "" {
		cfg.Report.OutputDir = opts.outDir
	}
	if opts.formats != "" {
		var formats []string
		for _, f := range strings.Split(opts.formats, ",") {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				formats = append(formats, f)
			}
		}
		cfg.Report.Formats = formats
	}
	if opts.addr != "" {
		cfg.Server.Address = opts.addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, error) {
	// console logs go to stderr so stdout carries only report paths
	if cfg.Logging.Output == "console" {
		return infrastructure.NewLogger(cfg.Logging, stderr), nil
	}
	return infrastructure.InitializeLogger(cfg.Logging)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, appOpts ...app.Option) error {
	opts, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	application, err := app.NewApplication(cfg, logger, appOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if opts.serve {
		return application.Run(ctx)
	}
	defer application.Close(context.WithoutCancel(ctx))

	result, err := application.Generate(ctx, services.ReportRequest{})
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}

	logger.InfoContext(ctx, "Report generated",
		slog.String("operation_id", result.OperationID),
		slog.Int("loaded_records", result.LoadedRecords),
		slog.Int("confirmed_records", result.ConfirmedRecords),
		slog.Int("files", len(result.Files)))

	for _, f := range result.Files {
		fmt.Fprintln(stdout, f)
	}
	return nil
}
