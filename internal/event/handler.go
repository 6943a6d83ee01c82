// Package event runs the pipeline for object-created notifications: fetch the object,
// enrich it, and store the result next to the input.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-lambda-go/events"

	"github.com/shpitdev/company-enricher/internal/enrich"
	"github.com/shpitdev/company-enricher/internal/pipeline"
	"github.com/shpitdev/company-enricher/internal/storage"
	"github.com/shpitdev/company-enricher/pkg/pipeline/redact"
)

// Runner runs one enrichment pass over a local file.
type Runner interface {
	Run(ctx context.Context, inputPath string) (pipeline.Result, error)
}

// Response is the invocation result. Body is a JSON document.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// ResponseBody is the document carried in Response.Body.
type ResponseBody struct {
	Message string `json:"message"`

	InputFile        string `json:"input_file,omitempty"`
	OutputFile       string `json:"output_file,omitempty"`
	RecordsProcessed *int   `json:"records_processed,omitempty"`
	TotalRecords     *int   `json:"total_records,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Details   string `json:"details,omitempty"`
}

type Handler struct {
	Runner Runner
	Store  storage.ObjectStore
	// WorkDir holds per-invocation scratch directories. Defaults to os.TempDir().
	WorkDir string
	Logger  *slog.Logger
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return h.Logger
}

// Handle processes the first record of ev. Failures are reported in the Response,
// never as an error, so the event source does not redeliver a poisoned event.
func (h *Handler) Handle(ctx context.Context, ev events.S3Event) (Response, error) {
	logger := h.logger()

	bucket, key, err := location(ev)
	if err != nil {
		logger.Warn("invalid event structure", "error", err)
		return respond(http.StatusBadRequest, ResponseBody{
			Message: "Invalid event structure",
			Error:   "Missing required S3 event data",
			Details: err.Error(),
		}), nil
	}
	logger = logger.With("bucket", bucket, "key", key)
	logger.Info("received object event", "records", len(ev.Records))

	res, outputKey, err := h.process(ctx, logger, bucket, key)
	if err != nil {
		return errorResponse(logger, err), nil
	}

	processed, total := res.RecordsProcessed, res.TotalRecords
	return respond(http.StatusOK, ResponseBody{
		Message:          "Data enrichment completed successfully",
		InputFile:        key,
		OutputFile:       outputKey,
		RecordsProcessed: &processed,
		TotalRecords:     &total,
	}), nil
}

func (h *Handler) process(ctx context.Context, logger *slog.Logger, bucket, key string) (pipeline.Result, string, error) {
	if h.Runner == nil || h.Store == nil {
		return pipeline.Result{}, "", &enrich.ConfigurationError{Msg: "event handler is missing a runner or object store"}
	}

	dir, err := os.MkdirTemp(h.WorkDir, "event-")
	if err != nil {
		return pipeline.Result{}, "", &enrich.DataProcessingError{Msg: "failed to create work directory", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("failed to remove work directory", "dir", dir, "error", err)
		}
	}()

	localInput := filepath.Join(dir, path.Base(key))
	if err := h.Store.Download(ctx, bucket, key, localInput); err != nil {
		return pipeline.Result{}, "", &enrich.DataProcessingError{Msg: "failed to download input object", Err: err}
	}

	res, err := h.Runner.Run(ctx, localInput)
	if err != nil {
		return pipeline.Result{}, "", err
	}

	outputKey := OutputKey(key)
	if err := h.Store.Upload(ctx, bucket, outputKey, res.OutputFile); err != nil {
		return pipeline.Result{}, "", &enrich.DataProcessingError{Msg: "failed to upload output object", Err: err}
	}
	logger.Info("stored enriched object", "output_key", outputKey,
		"records_processed", res.RecordsProcessed, "total_records", res.TotalRecords)
	return res, outputKey, nil
}

// OutputKey names the enriched object: same prefix, file name prefixed with enriched_.
func OutputKey(key string) string {
	dir, base := path.Split(key)
	return dir + pipeline.OutputPrefix + base
}

func location(ev events.S3Event) (bucket, key string, err error) {
	if len(ev.Records) == 0 {
		return "", "", errors.New("event has no records")
	}
	rec := ev.Records[0].S3
	if rec.Bucket.Name == "" {
		return "", "", errors.New("record is missing s3.bucket.name")
	}
	key = rec.Object.URLDecodedKey
	if key == "" {
		key = rec.Object.Key
	}
	if key == "" {
		return "", "", errors.New("record is missing s3.object.key")
	}
	return rec.Bucket.Name, key, nil
}

func errorResponse(logger *slog.Logger, err error) Response {
	kind := enrich.KindOf(err)
	details := redact.Secrets(err.Error())

	var message string
	switch kind {
	case enrich.KindConfiguration:
		message = "Configuration error"
	case enrich.KindAPI:
		message = "API error"
	case enrich.KindDataProcessing:
		message = "Data processing error"
	default:
		message = "Internal server error"
	}
	logger.Error(message, "error_type", kind.String(), "error", details)

	return respond(http.StatusInternalServerError, ResponseBody{
		Message:   message,
		ErrorType: kind.String(),
		Details:   details,
	})
}

func respond(status int, body ResponseBody) Response {
	b, err := json.Marshal(body)
	if err != nil {
		// ResponseBody holds only strings and ints.
		b = []byte(`{"message":"Internal server error"}`)
	}
	return Response{StatusCode: status, Body: string(b)}
}
