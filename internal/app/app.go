// Package app wires configuration into the pipeline and its three entry points:
// local runs, the HTTP upload server, and object-created events (Lambda or SQS).
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/shpitdev/company-enricher/internal/config"
	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/event"
	"github.com/shpitdev/company-enricher/internal/pipeline"
	"github.com/shpitdev/company-enricher/internal/queue"
	"github.com/shpitdev/company-enricher/internal/server"
	"github.com/shpitdev/company-enricher/internal/storage"
	"github.com/shpitdev/company-enricher/internal/version"
	"github.com/shpitdev/company-enricher/pkg/pipeline/retry"
	"github.com/shpitdev/company-enricher/pkg/zoominfo"
)

// UserAgent is sent on every company-data API request.
var UserAgent = "company-enricher/" + version.Current

// CredentialProvider picks the secrets file when one is configured, else the environment.
func CredentialProvider(cfg config.Config) enrich.CredentialProvider {
	if path := strings.TrimSpace(cfg.SecretsFile); path != "" {
		return enrich.SecretsFile{Path: path}
	}
	return enrich.EnvCredentials{}
}

// NewPipeline builds a pipeline backed by the company-data API described by cfg.
func NewPipeline(cfg config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	client, err := zoominfo.NewClient(zoominfo.Config{
		BaseURL:   cfg.ZoomInfoBaseURL,
		CAPath:    cfg.ZoomInfoCAPath,
		UserAgent: UserAgent,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return nil, &enrich.ConfigurationError{Msg: "invalid company-data API settings", Err: err}
	}

	return pipeline.New(pipeline.Config{
		Credentials: CredentialProvider(cfg),
		Tokens:      enrich.ZoomInfoTokens{Client: client},
		Enricher: enrich.NewZoomInfoEnricher(client, enrich.EnricherConfig{
			MaxRetries:     cfg.MaxRetries,
			RequestTimeout: cfg.RequestTimeout,
			Limiter:        retry.NewLimiter(cfg.RateLimitRPS),
			Logger:         logger,
		}),
		Logger: logger,
	}), nil
}

// NewServer returns the upload server for runner.
func NewServer(cfg config.Config, runner server.Runner, logger *slog.Logger) *server.Server {
	return server.New(runner, server.Config{UploadDir: cfg.UploadDir, Logger: logger})
}

// LoadAWSConfig resolves credentials and region from the default chain. AWSRegion
// overrides the chain's region when set.
func LoadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// NewObjectStore returns the store selected by EventStore. The AWS config is only
// loaded for "s3".
func NewObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	switch cfg.EventStore {
	case "local":
		root := cfg.EventStoreRoot
		if root == "" {
			root = "."
		}
		return storage.LocalStore{Root: root}, nil
	case "s3", "":
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(awsCfg), nil
	default:
		return nil, fmt.Errorf("unknown event store %q", cfg.EventStore)
	}
}

// NewEventHandler builds the object-created event handler around runner.
func NewEventHandler(ctx context.Context, cfg config.Config, runner event.Runner, logger *slog.Logger) (*event.Handler, error) {
	store, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &event.Handler{Runner: runner, Store: store, Logger: logger}, nil
}

// NewPoller builds an SQS poller feeding handler.
func NewPoller(ctx context.Context, cfg config.Config, handler queue.EventHandler, logger *slog.Logger) (*queue.Poller, error) {
	if cfg.SQSQueueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return queue.NewPoller(sqs.NewFromConfig(awsCfg), handler, queue.Config{
		QueueURL:          cfg.SQSQueueURL,
		WaitTime:          cfg.SQSWaitTime,
		VisibilityTimeout: cfg.SQSVisibilityTimeout,
		MaxMessages:       int32(cfg.SQSMaxMessages),
		Logger:            logger,
	}), nil
}
