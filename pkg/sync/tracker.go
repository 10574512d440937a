package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/internal/metrics"
	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/analytics"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

// SubmitRevenue submits the daily revenue query for asynchronous
// execution. The call returns as soon as the engine hands back an
// execution id; results are persisted later by Reconcile.
func (s *syncService) SubmitRevenue(ctx context.Context) (*RunResult, error) {
	return s.submitQuery(ctx, JobRevenue, s.opts.RevenueQueryID)
}

// SubmitTvl submits the protocol TVL query for asynchronous execution.
func (s *syncService) SubmitTvl(ctx context.Context) (*RunResult, error) {
	return s.submitQuery(ctx, JobTvl, s.opts.TvlQueryID)
}

func (s *syncService) submitQuery(ctx context.Context, jobType string, queryID int64) (*RunResult, error) {
	release, ok := s.guard.TryAcquire(jobType)
	if !ok {
		return nil, apperrors.LockedError(nil, jobType+" already running")
	}
	defer release()

	if queryID == 0 {
		return nil, apperrors.BadRequestError(nil, "no query configured for "+jobType)
	}

	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	execution, err := s.engine.Execute(ctx, queryID)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("dune").Inc()
		s.recordRun(ctx, jobType, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, apperrors.DependencyError(err, "failed to submit query")
	}

	// The execution record exists only once the engine has accepted the
	// query, so a submission failure never leaves an orphan PENDING row.
	if err := s.snapshots.CreateExecution(ctx, execution.ExecutionID, queryID); err != nil {
		s.recordRun(ctx, jobType, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, err
	}

	message := fmt.Sprintf("submitted execution %s for query %d", execution.ExecutionID, queryID)
	s.recordRun(ctx, jobType, snapshotstore.RunCompleted, correlationID, message, startedAt)

	s.logger.Info("query submitted",
		zap.String("job", jobType),
		zap.String("execution_id", execution.ExecutionID),
		zap.Int64("query_id", queryID))

	return &RunResult{
		JobType:       jobType,
		Status:        snapshotstore.RunCompleted,
		CorrelationID: correlationID,
		ExecutionID:   execution.ExecutionID,
		Succeeded:     1,
		Message:       message,
	}, nil
}

// Reconcile polls every PENDING execution and settles the ones that
// reached a terminal state. Completed results are persisted through the
// handler registered for their query id before the record is finished;
// failed executions are finished without writing any snapshot rows.
// Executions still running are left untouched for the next pass.
func (s *syncService) Reconcile(ctx context.Context) (*RunResult, error) {
	release, ok := s.guard.TryAcquire(JobReconcile)
	if !ok {
		return nil, apperrors.LockedError(nil, "reconciliation already running")
	}
	defer release()

	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	pending, err := s.snapshots.ListPendingExecutions(ctx)
	if err != nil {
		s.recordRun(ctx, JobReconcile, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, fmt.Errorf("failed to list pending executions: %w", err)
	}

	var settled, failed int
	for _, record := range pending {
		outcome, err := s.reconcileOne(ctx, record)
		if err != nil {
			s.logger.Warn("failed to reconcile execution",
				zap.String("execution_id", record.ExecutionID),
				zap.Int64("query_id", record.QueryID),
				zap.Error(err))
			failed++
			continue
		}
		if outcome {
			settled++
		}
	}

	status := batchStatus(settled, failed)
	if len(pending) == 0 {
		status = snapshotstore.RunCompleted
	}
	message := fmt.Sprintf("%d settled, %d failed, %d pending", settled, failed, len(pending)-settled-failed)
	s.recordRun(ctx, JobReconcile, status, correlationID, message, startedAt)

	return &RunResult{
		JobType:       JobReconcile,
		Status:        status,
		CorrelationID: correlationID,
		Succeeded:     settled,
		Failed:        failed,
		Message:       message,
	}, nil
}

// reconcileOne returns true when the execution reached a terminal state
// and was settled, false when it is still running.
func (s *syncService) reconcileOne(ctx context.Context, record *snapshotstore.ExecutionDao) (bool, error) {
	result, err := s.engine.GetResult(ctx, record.ExecutionID)
	if err != nil {
		metrics.UpstreamErrors.WithLabelValues("dune").Inc()
		return false, err
	}
	if !result.Terminal() {
		return false, nil
	}

	if result.Failed() {
		applied, err := s.snapshots.FinishExecution(ctx, record.ExecutionID, snapshotstore.ExecutionFailed)
		if err != nil {
			return false, err
		}
		if !applied {
			s.logger.Warn("execution already settled", zap.String("execution_id", record.ExecutionID))
		}
		return true, nil
	}

	handler, ok := s.resultHandlers[record.QueryID]
	if !ok {
		// Unknown query: settle the record, there is nothing to persist.
		s.logger.Warn("no result handler for query",
			zap.Int64("query_id", record.QueryID),
			zap.String("execution_id", record.ExecutionID))
	} else if err := handler(ctx, record.ExecutionID, result.Result.Rows); err != nil {
		// Leave the record PENDING so the next pass retries persistence.
		return false, err
	}

	applied, err := s.snapshots.FinishExecution(ctx, record.ExecutionID, snapshotstore.ExecutionCompleted)
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Warn("execution already settled", zap.String("execution_id", record.ExecutionID))
	}
	return true, nil
}

// persistRevenueRows converts completed revenue query rows into daily
// snapshots, computes the trailing annualized figures, and upserts them
// keyed on day.
func (s *syncService) persistRevenueRows(ctx context.Context, executionID string, rows []map[string]any) error {
	points := make([]analytics.RevenuePoint, 0, len(rows))
	for _, row := range rows {
		day, err := parseDay(row["day"])
		if err != nil {
			return fmt.Errorf("bad revenue row: %w", err)
		}
		revenue, err := parseNumber(row["revenue"])
		if err != nil {
			return fmt.Errorf("bad revenue row for %s: %w", day.Format("2006-01-02"), err)
		}
		points = append(points, analytics.RevenuePoint{Day: day, Revenue: revenue})
	}

	annualized := analytics.AnnualizeTrailing(points)
	daos := make([]*snapshotstore.RevenueDao, 0, len(annualized))
	for _, point := range annualized {
		daos = append(daos, &snapshotstore.RevenueDao{
			Day:               point.Day,
			Revenue:           point.Revenue,
			AnnualizedRevenue: point.Annualized,
			QueryID:           s.opts.RevenueQueryID,
			ExecutionID:       executionID,
		})
	}
	return s.snapshots.UpsertRevenue(ctx, daos)
}

// persistTvlRows converts completed TVL query rows into per-protocol
// daily snapshots with the day total denormalized onto every row.
func (s *syncService) persistTvlRows(ctx context.Context, executionID string, rows []map[string]any) error {
	type tvlRow struct {
		day      time.Time
		protocol string
		tvl      float64
	}

	parsed := make([]tvlRow, 0, len(rows))
	totals := make(map[time.Time]float64)
	for _, row := range rows {
		day, err := parseDay(row["day"])
		if err != nil {
			return fmt.Errorf("bad tvl row: %w", err)
		}
		protocol, _ := row["protocol"].(string)
		if protocol == "" {
			return fmt.Errorf("bad tvl row for %s: missing protocol", day.Format("2006-01-02"))
		}
		tvl, err := parseNumber(row["tvl"])
		if err != nil {
			return fmt.Errorf("bad tvl row for %s/%s: %w", day.Format("2006-01-02"), protocol, err)
		}
		parsed = append(parsed, tvlRow{day: day, protocol: protocol, tvl: tvl})
		totals[day] += tvl
	}

	recordedAt := time.Now().UTC()
	daos := make([]*snapshotstore.ProtocolTvlDao, 0, len(parsed))
	for _, row := range parsed {
		daos = append(daos, &snapshotstore.ProtocolTvlDao{
			Day:        row.day,
			Protocol:   row.protocol,
			Tvl:        row.tvl,
			TotalTvl:   totals[row.day],
			RecordedAt: recordedAt,
		})
	}
	return s.snapshots.InsertProtocolTvl(ctx, daos)
}

var dayFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func parseDay(value any) (time.Time, error) {
	raw, ok := value.(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("missing day field")
	}
	for _, format := range dayFormats {
		if day, err := time.Parse(format, raw); err == nil {
			return day.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized day value %q", raw)
}

func parseNumber(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("missing numeric field")
	default:
		return 0, fmt.Errorf("unexpected numeric value %v", value)
	}
}
