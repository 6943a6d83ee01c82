package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/shpitdev/company-enricher/pkg/pipeline/core"
	"github.com/shpitdev/company-enricher/pkg/pipeline/retry"
	"github.com/shpitdev/company-enricher/pkg/zoominfo"
	"golang.org/x/time/rate"
)

// RecordEnricher looks up one company and reports what to write for its row.
type RecordEnricher interface {
	EnrichOne(ctx context.Context, companyName string, token Token) Outcome
}

// CompanySearcher is the part of the company-data client used for lookups.
// *zoominfo.Client implements it.
type CompanySearcher interface {
	SearchCompany(ctx context.Context, token, companyName string) (zoominfo.SearchResponse, error)
}

// EnricherConfig tunes a ZoomInfoEnricher. The zero value makes one attempt per
// record with a 30s timeout and no rate limit.
type EnricherConfig struct {
	MaxRetries     int
	RequestTimeout time.Duration
	// Limiter is shared across runs using this enricher. nil disables rate limiting.
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// ZoomInfoEnricher maps the first search match onto Attributes.
//
// Only a 401 is fatal. Every other lookup failure is logged and treated as no match
// so a single bad record never aborts a batch.
type ZoomInfoEnricher struct {
	client CompanySearcher
	opts   retry.Options
	logger *slog.Logger
}

func NewZoomInfoEnricher(client CompanySearcher, cfg EnricherConfig) *ZoomInfoEnricher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &ZoomInfoEnricher{client: client, logger: logger}
	e.opts = retry.Options{
		MaxRetries:        cfg.MaxRetries,
		RequestTimeout:    cfg.RequestTimeout,
		Limiter:           cfg.Limiter,
		BackoffJitterFrac: 0.2,
		OnRetry: func(attempt int, err error, sleep time.Duration) {
			logger.Warn("retrying company lookup", "attempt", attempt, "sleep", sleep, "error", err)
		},
	}
	return e
}

func (e *ZoomInfoEnricher) EnrichOne(ctx context.Context, companyName string, token Token) Outcome {
	resp, err := retry.Do(ctx, e.opts, func(ctx context.Context) (zoominfo.SearchResponse, error) {
		resp, err := e.client.SearchCompany(ctx, string(token), companyName)
		var he *zoominfo.HTTPError
		if errors.As(err, &he) && he.Retryable() {
			return resp, &core.TransientError{Err: err}
		}
		return resp, err
	})
	if err != nil {
		var he *zoominfo.HTTPError
		if errors.As(err, &he) && he.Unauthorized() {
			return Fatal(&APIError{Msg: "token expired or invalid", Err: err})
		}
		if ctx.Err() != nil {
			// The caller aborts the run; a warning per record would only add noise.
			return NotFound()
		}
		e.logger.Warn("company lookup failed", "company", companyName, "error", err)
		return NotFound()
	}

	if len(resp.Companies) == 0 {
		e.logger.Info("no data found for company", "company", companyName)
		return NotFound()
	}
	return Found(attributesOf(resp.Companies[0]))
}

func attributesOf(c zoominfo.Company) Attributes {
	return Attributes{
		Website:       c.Website.Ptr(),
		Industry:      c.Industry.Ptr(),
		Revenue:       c.Revenue.Ptr(),
		EmployeeCount: c.EmployeeCount.Ptr(),
		HQLocation:    c.HQCity(),
	}
}
