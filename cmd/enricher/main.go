package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	_ "golang.org/x/crypto/x509roots/fallback" // CA roots for scratch and provided.al2 images

	"github.com/shpitdev/company-enricher/internal/app"
	"github.com/shpitdev/company-enricher/internal/config"
	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/version"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "version", "--version":
		_, _ = fmt.Fprintln(os.Stdout, version.Current)
		return
	case "local":
		code = runLocal(ctx, os.Args[2:])
	case "serve":
		code = runServe(ctx, os.Args[2:])
	case "lambda":
		code = runLambda(ctx)
	case "queue":
		code = runQueue(ctx)
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		code = 2
	}
	stop()
	os.Exit(code)
}

func setup() (config.Config, *slog.Logger, bool) {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return config.Config{}, nil, false
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", err)
		return config.Config{}, nil, false
	}
	slog.SetDefault(logger)
	return cfg, logger, true
}

func runLocal(ctx context.Context, args []string) int {
	cfg, logger, ok := setup()
	if !ok {
		return 2
	}

	fs := flag.NewFlagSet("local", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var inputPath string
	fs.StringVar(&inputPath, "input", "", "Input CSV file path (must include a 'company_name' column)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Extra attempts per company on 429/5xx/network errors (env: MAX_RETRIES)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Per-company request timeout (env: REQUEST_TIMEOUT)")
	fs.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "Global lookup rate limit (RPS), 0 disables (env: RATE_LIMIT_RPS)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if inputPath == "" {
		_, _ = fmt.Fprintln(os.Stderr, "local requires --input")
		return 2
	}

	p, err := app.NewPipeline(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	res, err := p.Run(ctx, inputPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "local run failed (%s): %s\n", enrich.KindOf(err), redact.Secrets(err.Error()))
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return 1
	}
	return 0
}

func runServe(ctx context.Context, args []string) int {
	cfg, logger, ok := setup()
	if !ok {
		return 2
	}

	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	host := fs.String("host", "0.0.0.0", "Listen host")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "Listen port (env: PORT)")
	fs.StringVar(&cfg.UploadDir, "upload-dir", cfg.UploadDir, "Directory receiving uploads (env: UPLOAD_DIR)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	p, err := app.NewPipeline(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "upload dir error: %s\n", err)
		return 2
	}

	srv := app.NewServer(cfg, p, logger)
	if err := srv.Start(ctx, net.JoinHostPort(*host, cfg.Port)); err != nil {
		logger.Error("server stopped", "error", err)
		return 1
	}
	return 0
}

func runLambda(ctx context.Context) int {
	cfg, logger, ok := setup()
	if !ok {
		return 2
	}
	p, err := app.NewPipeline(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	h, err := app.NewEventHandler(ctx, cfg, p, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	// lambda.Start never returns; the runtime owns the process.
	lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
	return 0
}

func runQueue(ctx context.Context) int {
	cfg, logger, ok := setup()
	if !ok {
		return 2
	}
	p, err := app.NewPipeline(cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	h, err := app.NewEventHandler(ctx, cfg, p, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}
	poller, err := app.NewPoller(ctx, cfg, h, logger)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", redact.Secrets(err.Error()))
		return 2
	}

	if err := poller.Run(ctx); err != nil {
		logger.Error("queue poller stopped", "error", redact.Secrets(err.Error()))
		return 1
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `enricher: company enrichment for CSV files (local, HTTP, S3 events)

Usage:
  enricher <command> [flags]

Commands:
  local    Enrich a local CSV; writes enriched_<name> next to it
  serve    Run the HTTP upload server (GET /health, POST /upload)
  lambda   Run as an AWS Lambda handler for S3 object-created events
  queue    Long-poll SQS for S3 object-created notifications
  version  Print the version

Examples:
  enricher local --input companies.csv
  enricher serve --port 8000

Environment (company-data API):
  ZOOMINFO_CLIENT_ID     API client id (required unless ZOOMINFO_SECRETS_FILE is set)
  ZOOMINFO_PRIVATE_KEY   API private key (required unless ZOOMINFO_SECRETS_FILE is set)
  ZOOMINFO_SECRETS_FILE  JSON file holding {"zoominfo":{"clientId","privateKey"}}
  ZOOMINFO_BASE_URL      Optional base URL override (proxies/testing)
  ZOOMINFO_CA_PATH       Optional PEM bundle trusted for TLS

Environment (events):
  EVENT_STORE        s3 (default) or local
  EVENT_STORE_ROOT   Root directory for EVENT_STORE=local
  AWS_REGION         Region override for S3 and SQS
  SQS_QUEUE_URL      Queue carrying S3 notifications (queue command)

Environment (general):
  ENV_PATH, APP_ENV, APP_CONFIG, LOG_LEVEL, LOG_FORMAT, PORT, UPLOAD_DIR,
  REQUEST_TIMEOUT, MAX_RETRIES, RATE_LIMIT_RPS

`)
}
