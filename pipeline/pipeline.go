// Package pipeline runs fetched images through duplicate detection and onto
// disk, and reports what happened to every URL.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-fetch-images/fetcher"
	"github.com/aluiziolira/go-fetch-images/models"
)

// ImageFetcher retrieves and validates a single URL.
type ImageFetcher interface {
	Fetch(rawURL string) models.FetchResult
}

// Committer persists fetched bytes unless they are a known duplicate.
type Committer interface {
	Commit(body []byte, sourceURL, contentType string, index int) (models.CommitResult, error)
}

// OutputWriter defines the interface for run reports.
type OutputWriter interface {
	Write(records []*models.Record) error
	Close() error
	Validate() error
}

// Pipeline processes a batch of URLs one at a time. A failure on one URL is
// counted and never stops the batch.
type Pipeline struct {
	fetcher ImageFetcher
	store   Committer

	// Writer receives one record per URL when set.
	Writer OutputWriter
	// Metrics counts outcomes when set.
	Metrics *fetcher.Metrics
	// OnRecord is called after each URL, in order.
	OnRecord func(*models.Record)
}

// NewPipeline wires a fetcher to a store.
func NewPipeline(f ImageFetcher, store Committer) *Pipeline {
	return &Pipeline{fetcher: f, store: store}
}

// Run processes urls sequentially with 1-based indices. Cancelling ctx stops
// the batch before the next URL; the request in flight is allowed to finish.
// The returned error only reports report-writer failures; the summary is
// always complete for the URLs that were processed.
func (p *Pipeline) Run(ctx context.Context, urls []string) (*models.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	summary := &models.RunSummary{Requested: len(urls)}
	var writeErr error

	for i, raw := range urls {
		if ctx.Err() != nil {
			summary.Interrupted = true
			slog.Info("batch interrupted", slog.Int("processed", i), slog.Int("total", len(urls)))
			break
		}

		req := models.ImageRequest{URL: raw, Index: i + 1}
		slog.Debug("processing url",
			slog.Int("index", req.Index),
			slog.Int("total", len(urls)),
			slog.String("url", req.URL),
		)

		rec := p.Process(req)
		switch rec.Outcome {
		case models.OutcomeStored:
			summary.Successful++
			summary.StoredBytes += int64(rec.Bytes)
		case models.OutcomeDuplicate:
			summary.Duplicates++
		default:
			summary.Errors++
		}
		p.Metrics.IncOutcome(string(rec.Outcome))

		if p.Writer != nil {
			if err := p.Writer.Write([]*models.Record{rec}); err != nil && writeErr == nil {
				writeErr = fmt.Errorf("write report: %w", err)
				slog.Error("report write failed", slog.Any("error", err))
			}
		}
		if p.OnRecord != nil {
			p.OnRecord(rec)
		}
	}

	return summary, writeErr
}

// Process fetches and commits one request and describes the result. Panics
// raised while handling the request are converted into an error record.
func (p *Pipeline) Process(req models.ImageRequest) (rec *models.Record) {
	rec = &models.Record{Index: req.Index, URL: req.URL}

	defer func() {
		if r := recover(); r != nil {
			rec.Outcome = models.OutcomeError
			rec.Category = "unexpected"
			rec.Detail = fmt.Sprint(r)
			rec.Path = ""
			slog.Error("unexpected failure", slog.String("url", req.URL), slog.Any("panic", r))
		}
	}()

	result := p.fetcher.Fetch(req.URL)
	if !result.OK() {
		rec.Outcome = models.OutcomeError
		rec.Category = fetcher.ErrorCategory(result.Err)
		if result.Err != nil {
			rec.Detail = result.Err.Error()
		}
		slog.Info("fetch failed",
			slog.String("url", req.URL),
			slog.String("kind", result.Kind.String()),
			slog.String("category", rec.Category),
			slog.Any("error", result.Err),
		)
		return rec
	}

	committed, err := p.store.Commit(result.Body, req.URL, result.ContentType, req.Index)
	rec.Fingerprint = committed.Fingerprint
	rec.Bytes = committed.Size
	if err != nil {
		rec.Outcome = models.OutcomeError
		rec.Category = storageCategory(err)
		rec.Detail = err.Error()
		slog.Error("commit failed", slog.String("url", req.URL), slog.Any("error", err))
		return rec
	}

	if committed.Kind == models.CommitDuplicate {
		rec.Outcome = models.OutcomeDuplicate
		rec.Detail = committed.Filename
		slog.Info("duplicate skipped",
			slog.String("url", req.URL),
			slog.String("fingerprint", committed.Fingerprint),
		)
		return rec
	}

	rec.Outcome = models.OutcomeStored
	rec.Path = committed.Path
	slog.Info("image stored",
		slog.String("url", req.URL),
		slog.String("path", committed.Path),
		slog.Int("bytes", committed.Size),
	)
	return rec
}

func storageCategory(err error) string {
	var storage ErrStorage
	if errors.As(err, &storage) {
		return "storage"
	}
	return "other"
}
