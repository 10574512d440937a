package snapshotstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/atareh/lightvision/pkg/token"
)

var ErrNoSnapshots = errors.New("no snapshots recorded")

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the snapshot store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

// InsertTokenMetrics appends one snapshot row per successfully fetched
// token for the refresh cycle.
func (s *pgStore) InsertTokenMetrics(ctx context.Context, rows []*TokenMetricDao) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert token metric snapshots: %w", err)
	}
	return nil
}

// DeleteTokenMetrics removes a token's metric history. Used by the admin
// cascade delete.
func (s *pgStore) DeleteTokenMetrics(ctx context.Context, contractAddress string) error {
	_, err := s.db.NewDelete().
		Model((*TokenMetricDao)(nil)).
		Where("contract_address = ?", token.NormalizeAddress(contractAddress)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete token metric history: %w", err)
	}
	return nil
}

func (s *pgStore) InsertEcosystemMetric(ctx context.Context, row *EcosystemMetricDao) error {
	_, err := s.db.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert ecosystem metric snapshot: %w", err)
	}
	return nil
}

// ListEcosystemMetrics returns the full snapshot history, newest first.
// The 24h-delta read path scans it for the nearest comparison row.
func (s *pgStore) ListEcosystemMetrics(ctx context.Context) ([]*EcosystemMetricDao, error) {
	var rows []*EcosystemMetricDao
	err := s.db.NewSelect().
		Model(&rows).
		Order("recorded_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ecosystem metric snapshots: %w", err)
	}
	return rows, nil
}

func (s *pgStore) InsertAssetPrice(ctx context.Context, row *AssetPriceDao) error {
	_, err := s.db.NewInsert().
		Model(row).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert asset price snapshot: %w", err)
	}
	return nil
}

// LatestAssetPrice returns the most recent external-asset snapshot.
func (s *pgStore) LatestAssetPrice(ctx context.Context, assetID string) (*AssetPriceDao, error) {
	row := new(AssetPriceDao)
	err := s.db.NewSelect().
		Model(row).
		Where("asset_id = ?", assetID).
		Order("recorded_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshots
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest asset price: %w", err)
	}
	return row, nil
}

// UpsertRevenue writes daily revenue rows keyed on day. Re-running a sync
// for an already-recorded day overwrites that day's row.
func (s *pgStore) UpsertRevenue(ctx context.Context, rows []*RevenueDao) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		row.UpdatedAt = &now
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (day) DO UPDATE").
		Set("revenue = EXCLUDED.revenue").
		Set("annualized_revenue = EXCLUDED.annualized_revenue").
		Set("query_id = EXCLUDED.query_id").
		Set("execution_id = EXCLUDED.execution_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert revenue snapshots: %w", err)
	}
	return nil
}

// ListRevenue returns revenue rows ascending by day.
func (s *pgStore) ListRevenue(ctx context.Context, limit int) ([]*RevenueDao, error) {
	var rows []*RevenueDao
	q := s.db.NewSelect().
		Model(&rows).
		Order("day ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list revenue snapshots: %w", err)
	}
	return rows, nil
}

func (s *pgStore) InsertProtocolTvl(ctx context.Context, rows []*ProtocolTvlDao) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert protocol tvl snapshots: %w", err)
	}
	return nil
}

func (s *pgStore) ListProtocolTvl(ctx context.Context) ([]*ProtocolTvlDao, error) {
	var rows []*ProtocolTvlDao
	err := s.db.NewSelect().
		Model(&rows).
		Order("day DESC").
		Order("tvl DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocol tvl snapshots: %w", err)
	}
	return rows, nil
}

// CreateExecution records a PENDING execution. Only called once the query
// engine has accepted the request and returned an execution id, so
// network-level submission failures never leave orphan rows.
func (s *pgStore) CreateExecution(ctx context.Context, executionID string, queryID int64) error {
	dao := &ExecutionDao{
		ExecutionID: executionID,
		QueryID:     queryID,
		Status:      ExecutionPending,
	}
	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}
	return nil
}

// ListPendingExecutions returns executions still awaiting reconciliation,
// oldest first.
func (s *pgStore) ListPendingExecutions(ctx context.Context) ([]*ExecutionDao, error) {
	var rows []*ExecutionDao
	err := s.db.NewSelect().
		Model(&rows).
		Where("status = ?", ExecutionPending).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending executions: %w", err)
	}
	return rows, nil
}

// FinishExecution transitions a PENDING execution to a terminal status.
// The WHERE clause guards the state machine: a record already in a
// terminal state is never rewritten, and the false return tells the caller
// the transition did not happen.
func (s *pgStore) FinishExecution(ctx context.Context, executionID, status string) (bool, error) {
	if status != ExecutionCompleted && status != ExecutionFailed {
		return false, fmt.Errorf("invalid terminal status %q", status)
	}
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*ExecutionDao)(nil)).
		Set("status = ?", status).
		Set("completed_at = ?", now).
		Where("execution_id = ?", executionID).
		Where("status = ?", ExecutionPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to finish execution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read execution update result: %w", err)
	}
	return affected == 1, nil
}

// RecordJobRun writes the audit row for one sync job invocation.
func (s *pgStore) RecordJobRun(ctx context.Context, jobType, status, correlationID, message string, startedAt time.Time) error {
	dao := &JobRunDao{
		JobType:       jobType,
		Status:        status,
		CorrelationID: correlationID,
		StartedAt:     startedAt,
	}
	if message != "" {
		dao.Message = &message
	}
	_, err := s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record job run: %w", err)
	}
	return nil
}

// ListJobRuns returns the most recent job runs for the admin audit view.
func (s *pgStore) ListJobRuns(ctx context.Context, limit int) ([]*JobRunDao, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*JobRunDao
	err := s.db.NewSelect().
		Model(&rows).
		Order("started_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	return rows, nil
}
