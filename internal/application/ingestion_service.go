package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

// Job binds an adapter to the symbols it is responsible for.
type Job struct {
	Adapter marketdata.Adapter
	Specs   []domain.SymbolSpec
}

// CycleRecorder receives cycle outcomes, typically for metrics.
type CycleRecorder interface {
	ObserveFetchFailure(source string)
	ObserveNormalizeFailure(source string)
	ObserveStore(stored, failed int)
	ObserveCycle(totalRecords int64, duration time.Duration, finishedAt time.Time)
}

// CycleReport summarizes one ingestion cycle.
type CycleReport struct {
	CycleID         string         `json:"cycle_id"`
	StartedAt       time.Time      `json:"started_at"`
	Attempted       int            `json:"attempted"`
	Fetched         int            `json:"fetched"`
	FetchFailed     int            `json:"fetch_failed"`
	NormalizeFailed int            `json:"normalize_failed"`
	Stored          int            `json:"stored"`
	StoreFailed     int            `json:"store_failed"`
	TotalRecords    int64          `json:"total_records"`
	SumClose        domain.Decimal `json:"sum_close"`
	Duration        time.Duration  `json:"duration_ns"`
}

// StoreAttempted reports whether the cycle tried to write anything.
func (r CycleReport) StoreAttempted() bool {
	return r.Stored+r.StoreFailed > 0
}

// AllStoresFailed reports whether every attempted write failed.
func (r CycleReport) AllStoresFailed() bool {
	return r.StoreAttempted() && r.Stored == 0
}

// IngestionService runs fetch, normalize and upsert for every job.
type IngestionService struct {
	repo       domain.QuoteRepository
	normalizer domain.Normalizer
	jobs       []Job
	recorder   CycleRecorder
	now        func() time.Time

	// serializes cycles so a manual refresh never overlaps a scheduled run
	mu sync.Mutex
}

func NewIngestionService(repo domain.QuoteRepository, normalizer domain.Normalizer, jobs []Job) *IngestionService {
	return &IngestionService{
		repo:       repo,
		normalizer: normalizer,
		jobs:       jobs,
		now:        time.Now,
	}
}

// SetRecorder attaches a recorder; nil disables recording.
func (s *IngestionService) SetRecorder(r CycleRecorder) {
	s.recorder = r
}

// Ping checks whether the store is reachable.
func (s *IngestionService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// RunCycle processes every job once. Per-symbol failures are logged and
// counted; they never stop the cycle. Nothing is retried.
func (s *IngestionService) RunCycle(ctx context.Context) CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: s.now(),
		SumClose:  domain.Zero,
	}
	logger := slog.With("cycle_id", report.CycleID)
	logger.InfoContext(ctx, "Ingestion cycle started", "jobs", len(s.jobs))

	asOf := report.StartedAt
	for _, job := range s.jobs {
		s.runJob(ctx, logger, job, asOf, &report)
	}

	s.summarize(ctx, logger, &report)
	report.Duration = s.now().Sub(report.StartedAt)

	logger.InfoContext(ctx, "Ingestion cycle completed",
		"attempted", report.Attempted,
		"fetched", report.Fetched,
		"fetch_failed", report.FetchFailed,
		"normalize_failed", report.NormalizeFailed,
		"stored", report.Stored,
		"store_failed", report.StoreFailed,
		"total_records", report.TotalRecords,
		"sum_close", report.SumClose.String(),
		"duration", report.Duration,
	)
	if s.recorder != nil {
		s.recorder.ObserveCycle(report.TotalRecords, report.Duration, report.StartedAt.Add(report.Duration))
	}
	return report
}

func (s *IngestionService) runJob(ctx context.Context, logger *slog.Logger, job Job, asOf time.Time, report *CycleReport) {
	if len(job.Specs) == 0 {
		return
	}
	source := job.Adapter.Name()
	report.Attempted += len(job.Specs)

	results := job.Adapter.Fetch(ctx, job.Specs)

	records := make([]domain.CanonicalRecord, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			report.FetchFailed++
			s.observeFetchFailure(source)
			logFailure(ctx, logger, "Fetch failed", source, res.Spec, res.Err)
			continue
		}
		if res.Quote == nil {
			report.FetchFailed++
			s.observeFetchFailure(source)
			logFailure(ctx, logger, "Fetch failed", source, res.Spec, domain.NewFetchError(source, res.Spec.Name, domain.ErrNoData, "empty result"))
			continue
		}
		report.Fetched++

		record, err := s.normalizer.Normalize(res.Spec.Name, *res.Quote, res.Spec.AssetClass, asOf)
		if err != nil {
			report.NormalizeFailed++
			if s.recorder != nil {
				s.recorder.ObserveNormalizeFailure(source)
			}
			logFailure(ctx, logger, "Normalize failed", source, res.Spec, err)
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return
	}

	stored, failed := 0, 0
	for i, err := range s.repo.UpsertBatch(ctx, records) {
		if err != nil {
			failed++
			logger.WarnContext(ctx, "Store failed",
				"source", source,
				"symbol", records[i].Symbol,
				"asset_class", records[i].AssetClass,
				"reason", err.Error(),
			)
			continue
		}
		stored++
	}
	report.Stored += stored
	report.StoreFailed += failed
	if s.recorder != nil {
		s.recorder.ObserveStore(stored, failed)
	}
}

func (s *IngestionService) summarize(ctx context.Context, logger *slog.Logger, report *CycleReport) {
	// Count and SumClose still run when ctx is cancelled mid-cycle.
	readCtx := context.WithoutCancel(ctx)

	total, err := s.repo.Count(readCtx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count stored records", "error", err)
	} else {
		report.TotalRecords = total
	}

	sum, err := s.repo.SumClose(readCtx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to sum stored close prices", "error", err)
	} else {
		report.SumClose = sum
	}
}

func (s *IngestionService) observeFetchFailure(source string) {
	if s.recorder != nil {
		s.recorder.ObserveFetchFailure(source)
	}
}

func logFailure(ctx context.Context, logger *slog.Logger, msg, source string, spec domain.SymbolSpec, err error) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, msg,
		"source", source,
		"symbol", spec.Name,
		"asset_class", spec.AssetClass,
		"reason", err.Error(),
	)
}
