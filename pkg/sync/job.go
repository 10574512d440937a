// Package sync implements the scheduled data-synchronization jobs:
// token price/liquidity refresh, social link sync, external asset price
// sync, and the asynchronous revenue/TVL query pipeline.
package sync

// Job types as recorded in the job run audit log.
const (
	JobRefresh    = "token_refresh"
	JobSocial     = "social_sync"
	JobAssetPrice = "asset_price_sync"
	JobRevenue    = "revenue_sync"
	JobTvl        = "tvl_sync"
	JobReconcile  = "execution_reconcile"
)

// RunResult summarizes one completed job invocation.
type RunResult struct {
	JobType       string `json:"job_type"`
	Status        string `json:"status"`
	CorrelationID string `json:"correlation_id"`
	ExecutionID   string `json:"execution_id,omitempty"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	Message       string `json:"message,omitempty"`
}
