// Package snapshotstore persists the append-only metric snapshot tables,
// the revenue/TVL analytics tables, query execution records and the job
// run audit log.
package snapshotstore

import (
	"time"

	"github.com/uptrace/bun"
)

// Execution statuses. PENDING is the only initial state; COMPLETED and
// FAILED are terminal.
const (
	ExecutionPending   = "PENDING"
	ExecutionCompleted = "COMPLETED"
	ExecutionFailed    = "FAILED"
)

// Job run statuses.
const (
	RunCompleted      = "COMPLETED"
	RunFailed         = "FAILED"
	RunPartialFailure = "PARTIAL_FAILURE"
)

// TokenMetricDao maps to the 'token_metric_snapshots' table. Append-only:
// one row per token per refresh cycle, never mutated after insert.
type TokenMetricDao struct {
	bun.BaseModel   `bun:"table:token_metric_snapshots,alias:tms"`
	ID              int64     `bun:"id,pk,autoincrement"`
	ContractAddress string    `bun:"contract_address,notnull,type:varchar(66)"`
	Price           *float64  `bun:"price"`
	LiquidityUSD    *float64  `bun:"liquidity_usd"`
	Volume24h       *float64  `bun:"volume_24h"`
	MarketCap       *float64  `bun:"market_cap"`
	RecordedAt      time.Time `bun:"recorded_at,notnull"`
}

// EcosystemMetricDao maps to the 'ecosystem_metric_snapshots' table.
// Visible fields exclude hidden and low-liquidity tokens.
type EcosystemMetricDao struct {
	bun.BaseModel    `bun:"table:ecosystem_metric_snapshots,alias:ems"`
	ID               int64      `bun:"id,pk,autoincrement"`
	TotalMarketCap   float64    `bun:"total_market_cap,notnull"`
	TotalVolume24h   float64    `bun:"total_volume_24h,notnull"`
	VisibleMarketCap float64    `bun:"visible_market_cap,notnull"`
	VisibleVolume24h float64    `bun:"visible_volume_24h,notnull"`
	TokenCount       int        `bun:"token_count,notnull"`
	VisibleCount     int        `bun:"visible_count,notnull"`
	RecordedAt       time.Time  `bun:"recorded_at,notnull"`
	UpdatedAt        *time.Time `bun:"updated_at"`
}

// AssetPriceDao maps to the 'asset_price_snapshots' table, one append-only
// row per external-asset price sync.
type AssetPriceDao struct {
	bun.BaseModel      `bun:"table:asset_price_snapshots,alias:aps"`
	ID                 int64     `bun:"id,pk,autoincrement"`
	AssetID            string    `bun:"asset_id,notnull,type:varchar(64)"`
	Price              float64   `bun:"price,notnull"`
	MarketCap          float64   `bun:"market_cap,notnull"`
	Change24hPct       float64   `bun:"change_24h_pct,notnull"`
	FullyDilutedValue  float64   `bun:"fully_diluted_value,notnull"`
	Volume24h          float64   `bun:"volume_24h,notnull"`
	VolumeChange24hPct float64   `bun:"volume_change_24h_pct,notnull"`
	RecordedAt         time.Time `bun:"recorded_at,notnull"`
}

// RevenueDao maps to the 'revenue_snapshots' table, upserted keyed on day.
// AnnualizedRevenue stays null until a full 7-day trailing window exists.
type RevenueDao struct {
	bun.BaseModel     `bun:"table:revenue_snapshots,alias:rs"`
	Day               time.Time  `bun:"day,pk,type:date"`
	Revenue           float64    `bun:"revenue,notnull"`
	AnnualizedRevenue *int64     `bun:"annualized_revenue"`
	QueryID           int64      `bun:"query_id,notnull"`
	ExecutionID       string     `bun:"execution_id,notnull,type:varchar(128)"`
	UpdatedAt         *time.Time `bun:"updated_at"`
}

// ProtocolTvlDao maps to the 'protocol_tvl_snapshots' table. TotalTvl is
// denormalized across all protocol rows sharing a day.
type ProtocolTvlDao struct {
	bun.BaseModel `bun:"table:protocol_tvl_snapshots,alias:pts"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Day           time.Time `bun:"day,notnull,type:date"`
	Protocol      string    `bun:"protocol,notnull,type:varchar(128)"`
	Tvl           float64   `bun:"tvl,notnull"`
	TotalTvl      float64   `bun:"total_tvl,notnull"`
	RecordedAt    time.Time `bun:"recorded_at,notnull"`
}

// ExecutionDao maps to the 'query_executions' table tracking asynchronous
// query engine invocations.
type ExecutionDao struct {
	bun.BaseModel `bun:"table:query_executions,alias:qe"`
	ExecutionID   string     `bun:"execution_id,pk,type:varchar(128)"`
	QueryID       int64      `bun:"query_id,notnull"`
	Status        string     `bun:"status,notnull,type:varchar(16)"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	CompletedAt   *time.Time `bun:"completed_at"`
}

// JobRunDao maps to the 'job_runs' audit table, one row per sync job
// invocation written at completion.
type JobRunDao struct {
	bun.BaseModel `bun:"table:job_runs,alias:jr"`
	ID            int64     `bun:"id,pk,autoincrement"`
	JobType       string    `bun:"job_type,notnull,type:varchar(64)"`
	Status        string    `bun:"status,notnull,type:varchar(32)"`
	Message       *string   `bun:"message,type:varchar(1024)"`
	CorrelationID string    `bun:"correlation_id,notnull,type:varchar(64)"`
	StartedAt     time.Time `bun:"started_at,notnull"`
}
