// Package pipeline runs one enrichment pass over a CSV file: authenticate, look up
// each company in input order, and write the enriched copy next to the input.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shpitdev/company-enricher/internal/enrich"
	localio "github.com/shpitdev/company-enricher/pkg/pipeline/io/local"
	"github.com/shpitdev/company-enricher/pkg/pipeline/schema"
)

// CompanyNameColumn is the only column an input file must carry.
const CompanyNameColumn = "company_name"

// OutputPrefix is prepended to the input file name to name the output file.
const OutputPrefix = "enriched_"

// Columns is the column contract shared by every run.
var Columns = schema.Contract{
	Required: []string{CompanyNameColumn},
	Appended: []string{
		"enriched_website",
		"enriched_industry",
		"enriched_revenue",
		"enriched_employee_count",
		"enriched_hq_location",
	},
}

// Result summarizes a completed run.
type Result struct {
	OutputFile       string `json:"output_file"`
	RecordsProcessed int    `json:"records_processed"`
	TotalRecords     int    `json:"total_records"`
}

// Config wires the collaborators a run needs.
type Config struct {
	Credentials enrich.CredentialProvider
	Tokens      enrich.TokenAcquirer
	Enricher    enrich.RecordEnricher
	Logger      *slog.Logger
}

// Pipeline holds no per-run state; one value may serve concurrent runs.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// OutputPath returns the path Run writes for inputPath.
func OutputPath(inputPath string) string {
	return filepath.Join(filepath.Dir(inputPath), OutputPrefix+filepath.Base(inputPath))
}

// Run enriches the CSV at inputPath and writes OutputPath(inputPath).
//
// Errors are always one of *enrich.ConfigurationError, *enrich.APIError, or
// *enrich.DataProcessingError. No output file exists after a failed run.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (res Result, err error) {
	logger := p.logger.With("run", uuid.NewString(), "input", inputPath)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("enrichment run panicked", "panic", r)
			res, err = Result{}, &enrich.DataProcessingError{Msg: "error processing data", Err: fmt.Errorf("panic: %v", r)}
			return
		}
		if err == nil {
			return
		}
		if enrich.KindOf(err) == enrich.KindUnknown {
			logger.Error("enrichment run failed with unexpected error", "error", err)
			err = &enrich.DataProcessingError{Msg: "error processing data", Err: err}
			return
		}
		logger.Error("enrichment run failed", "error_type", enrich.KindOf(err).String(), "error", err)
	}()

	return p.run(ctx, logger, inputPath, start)
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, inputPath string, start time.Time) (Result, error) {
	if p.cfg.Credentials == nil || p.cfg.Tokens == nil || p.cfg.Enricher == nil {
		return Result{}, &enrich.ConfigurationError{Msg: "pipeline is missing a credential provider, token acquirer, or enricher"}
	}

	creds, err := p.cfg.Credentials.Credentials()
	if err != nil {
		return Result{}, err
	}
	token, err := p.cfg.Tokens.AcquireToken(ctx, creds)
	if err != nil {
		return Result{}, err
	}
	logger.Info("authenticated with company-data API")

	table, err := localio.ReadTableFile(inputPath)
	if err != nil {
		return Result{}, &enrich.DataProcessingError{Msg: "failed to load input CSV", Err: err}
	}
	if err := Columns.Validate(table.Header); err != nil {
		var mc *schema.MissingColumnError
		if errors.As(err, &mc) {
			return Result{}, &enrich.DataProcessingError{Msg: "input CSV must have a '" + CompanyNameColumn + "' column", Err: err}
		}
		return Result{}, &enrich.DataProcessingError{Msg: "invalid input CSV", Err: err}
	}
	nameIdx := schema.Index(table.Header, CompanyNameColumn)

	header, attrIdx := Columns.OutputColumns(table.Header)
	total := len(table.Rows)
	logger.Info("loaded input", "records", total)
	progressEvery := max(1, total/10)

	rows := make([][]string, 0, total)
	enriched := 0
	for i, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return Result{}, &enrich.DataProcessingError{Msg: "enrichment cancelled", Err: err}
		}

		outcome := enrich.NotFound()
		name := strings.TrimSpace(row[nameIdx])
		if name == "" {
			logger.Warn("skipping record with empty company name", "record", i+1)
		} else {
			outcome = p.cfg.Enricher.EnrichOne(ctx, name, token)
			if outcome.Kind == enrich.OutcomeFatal {
				if outcome.Err == nil {
					return Result{}, &enrich.APIError{Msg: "token expired or invalid"}
				}
				return Result{}, outcome.Err
			}
			if err := ctx.Err(); err != nil {
				return Result{}, &enrich.DataProcessingError{Msg: "enrichment cancelled", Err: err}
			}
		}

		rows = append(rows, outputRow(row, len(header), attrIdx, outcome))
		if outcome.Kind == enrich.OutcomeFound {
			enriched++
		}

		if (i+1)%progressEvery == 0 {
			logger.Info(fmt.Sprintf("Processed %d/%d records (%d enriched)...", i+1, total, enriched))
		}
	}

	outputPath := OutputPath(inputPath)
	if err := localio.WriteTableFile(outputPath, localio.Table{Header: header, Rows: rows}); err != nil {
		return Result{}, &enrich.DataProcessingError{Msg: "failed to write output CSV", Err: err}
	}

	logger.Info("enrichment run complete",
		"output", outputPath,
		"records_processed", enriched,
		"total_records", total,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return Result{OutputFile: outputPath, RecordsProcessed: enriched, TotalRecords: total}, nil
}

// outputRow copies the input cells and fills the enrichment cells from one outcome.
// Cells stay empty unless the outcome is Found.
func outputRow(in []string, width int, attrIdx []int, outcome enrich.Outcome) []string {
	r := make([]string, width)
	copy(r, in)
	for _, j := range attrIdx {
		r[j] = ""
	}
	if outcome.Kind != enrich.OutcomeFound {
		return r
	}
	for k, v := range outcome.Attributes.Columns() {
		if v != nil {
			r[attrIdx[k]] = *v
		}
	}
	return r
}
