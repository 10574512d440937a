package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/sources/coingecko"
	"github.com/atareh/lightvision/pkg/sources/dexscreener"
	"github.com/atareh/lightvision/pkg/sources/dune"
	"github.com/atareh/lightvision/pkg/token"
)

type fakeTokenStore struct {
	mu        stdsync.Mutex
	tokens    []*token.Token
	market    map[string]token.MarketData
	lowLiq    map[string]bool
	socials   map[string]token.Socials
	listErr   error
	marketErr map[string]error
}

func newFakeTokenStore(tokens ...*token.Token) *fakeTokenStore {
	return &fakeTokenStore{
		tokens:    tokens,
		market:    make(map[string]token.MarketData),
		lowLiq:    make(map[string]bool),
		socials:   make(map[string]token.Socials),
		marketErr: make(map[string]error),
	}
}

func (f *fakeTokenStore) ListEnabledTokens(ctx context.Context) ([]*token.Token, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tokens, nil
}

func (f *fakeTokenStore) UpdateMarketData(ctx context.Context, addr string, data token.MarketData, lowLiquidity bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.marketErr[addr]; err != nil {
		return err
	}
	f.market[addr] = data
	f.lowLiq[addr] = lowLiquidity
	return nil
}

func (f *fakeTokenStore) UpdateSocials(ctx context.Context, addr string, socials token.Socials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.socials[addr] = socials
	return nil
}

type fakeSnapshotStore struct {
	mu           stdsync.Mutex
	tokenMetrics []*snapshotstore.TokenMetricDao
	ecosystem    []*snapshotstore.EcosystemMetricDao
	assetPrices  []*snapshotstore.AssetPriceDao
	revenue      map[string]*snapshotstore.RevenueDao
	tvl          []*snapshotstore.ProtocolTvlDao
	executions   map[string]*snapshotstore.ExecutionDao
	jobRuns      []string
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{
		revenue:    make(map[string]*snapshotstore.RevenueDao),
		executions: make(map[string]*snapshotstore.ExecutionDao),
	}
}

func (f *fakeSnapshotStore) InsertTokenMetrics(ctx context.Context, rows []*snapshotstore.TokenMetricDao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenMetrics = append(f.tokenMetrics, rows...)
	return nil
}

func (f *fakeSnapshotStore) InsertEcosystemMetric(ctx context.Context, row *snapshotstore.EcosystemMetricDao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ecosystem = append(f.ecosystem, row)
	return nil
}

func (f *fakeSnapshotStore) InsertAssetPrice(ctx context.Context, row *snapshotstore.AssetPriceDao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assetPrices = append(f.assetPrices, row)
	return nil
}

func (f *fakeSnapshotStore) LatestAssetPrice(ctx context.Context, assetID string) (*snapshotstore.AssetPriceDao, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.assetPrices) == 0 {
		return nil, snapshotstore.ErrNoSnapshots
	}
	return f.assetPrices[len(f.assetPrices)-1], nil
}

func (f *fakeSnapshotStore) UpsertRevenue(ctx context.Context, rows []*snapshotstore.RevenueDao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range rows {
		f.revenue[row.Day.Format("2006-01-02")] = row
	}
	return nil
}

func (f *fakeSnapshotStore) InsertProtocolTvl(ctx context.Context, rows []*snapshotstore.ProtocolTvlDao) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tvl = append(f.tvl, rows...)
	return nil
}

func (f *fakeSnapshotStore) CreateExecution(ctx context.Context, executionID string, queryID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executions[executionID] = &snapshotstore.ExecutionDao{
		ExecutionID: executionID,
		QueryID:     queryID,
		Status:      snapshotstore.ExecutionPending,
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (f *fakeSnapshotStore) ListPendingExecutions(ctx context.Context) ([]*snapshotstore.ExecutionDao, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []*snapshotstore.ExecutionDao
	for _, record := range f.executions {
		if record.Status == snapshotstore.ExecutionPending {
			pending = append(pending, record)
		}
	}
	return pending, nil
}

func (f *fakeSnapshotStore) FinishExecution(ctx context.Context, executionID, status string) (bool, error) {
	if status != snapshotstore.ExecutionCompleted && status != snapshotstore.ExecutionFailed {
		return false, errors.New("invalid terminal status")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.executions[executionID]
	if !ok || record.Status != snapshotstore.ExecutionPending {
		return false, nil
	}
	record.Status = status
	return true, nil
}

func (f *fakeSnapshotStore) RecordJobRun(ctx context.Context, jobType, status, correlationID, message string, startedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobRuns = append(f.jobRuns, jobType+":"+status)
	return nil
}

type fakeDex struct {
	markets    map[string]dexscreener.TokenMarket
	socials    map[string]dexscreener.TokenSocials
	marketsErr error
}

func (f *fakeDex) FetchMarkets(ctx context.Context, addrs []string) (map[string]dexscreener.TokenMarket, error) {
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	out := make(map[string]dexscreener.TokenMarket)
	for _, addr := range addrs {
		if market, ok := f.markets[addr]; ok {
			out[addr] = market
		}
	}
	return out, nil
}

func (f *fakeDex) FetchSocials(ctx context.Context, addrs []string) (map[string]dexscreener.TokenSocials, error) {
	out := make(map[string]dexscreener.TokenSocials)
	for _, addr := range addrs {
		if entry, ok := f.socials[addr]; ok {
			out[addr] = entry
		}
	}
	return out, nil
}

type fakeAsset struct {
	market *coingecko.AssetMarket
	err    error
}

func (f *fakeAsset) FetchAssetMarket(ctx context.Context, assetID string) (*coingecko.AssetMarket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.market, nil
}

type fakeEngine struct {
	executions map[int64]string
	results    map[string]*dune.Result
	execErr    error
}

func (f *fakeEngine) Execute(ctx context.Context, queryID int64) (*dune.Execution, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &dune.Execution{ExecutionID: f.executions[queryID], State: "QUERY_STATE_PENDING"}, nil
}

func (f *fakeEngine) GetResult(ctx context.Context, executionID string) (*dune.Result, error) {
	result, ok := f.results[executionID]
	if !ok {
		return nil, errors.New("unknown execution")
	}
	return result, nil
}

func newTestService(tokens *fakeTokenStore, snapshots *fakeSnapshotStore, dex *fakeDex, asset *fakeAsset, engine *fakeEngine) Service {
	return NewService(tokens, snapshots, dex, asset, engine, NewRunGuard(), zap.NewNop(), Options{
		AssetID:            "hyperliquid",
		RevenueQueryID:     4104103,
		TvlQueryID:         5218321,
		LiquidityThreshold: 10000,
		FetchConcurrency:   2,
	})
}

func trackedToken(addr string) *token.Token {
	return token.New(addr, "TOK", "Token "+addr)
}

func marketWith(liquidity float64, mcap, vol float64) dexscreener.TokenMarket {
	price := 1.0
	return dexscreener.TokenMarket{
		PriceUSD:     &price,
		LiquidityUSD: &liquidity,
		Volume24h:    &vol,
		MarketCap:    &mcap,
	}
}

func TestRunRefresh_PartialFailure(t *testing.T) {
	tokens := newFakeTokenStore(
		trackedToken("0xa1"), trackedToken("0xa2"), trackedToken("0xa3"),
		trackedToken("0xa4"), trackedToken("0xa5"),
	)
	snapshots := newFakeSnapshotStore()
	dex := &fakeDex{markets: map[string]dexscreener.TokenMarket{
		"0xa1": marketWith(50000, 100, 10),
		"0xa2": marketWith(50000, 200, 20),
		"0xa3": marketWith(50000, 300, 30),
	}}

	svc := newTestService(tokens, snapshots, dex, &fakeAsset{}, &fakeEngine{})
	result, err := svc.RunRefresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, snapshotstore.RunPartialFailure, result.Status)
	require.Equal(t, 3, result.Succeeded)
	require.Equal(t, 2, result.Failed)

	// Only the successful tokens get snapshot rows.
	require.Len(t, snapshots.tokenMetrics, 3)

	// The aggregate reflects only the 3 fetched tokens.
	require.Len(t, snapshots.ecosystem, 1)
	aggregate := snapshots.ecosystem[0]
	require.Equal(t, 600.0, aggregate.TotalMarketCap)
	require.Equal(t, 60.0, aggregate.TotalVolume24h)
	require.Equal(t, 3, aggregate.TokenCount)

	require.Contains(t, snapshots.jobRuns, JobRefresh+":"+snapshotstore.RunPartialFailure)
}

func TestRunRefresh_RegistryWriteFailureCountsAsFailed(t *testing.T) {
	tokens := newFakeTokenStore(trackedToken("0xb1"), trackedToken("0xb2"))
	tokens.marketErr["0xb2"] = errors.New("connection reset")
	snapshots := newFakeSnapshotStore()
	dex := &fakeDex{markets: map[string]dexscreener.TokenMarket{
		"0xb1": marketWith(50000, 100, 10),
		"0xb2": marketWith(50000, 200, 20),
	}}

	svc := newTestService(tokens, snapshots, dex, &fakeAsset{}, &fakeEngine{})
	result, err := svc.RunRefresh(context.Background())
	require.NoError(t, err)

	// The fetch worked but the registry write did not; the token counts
	// as failed and the run message says so.
	require.Equal(t, snapshotstore.RunPartialFailure, result.Status)
	require.Equal(t, 1, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, "1 refreshed, 1 failed", result.Message)

	// No snapshot row and no aggregate contribution for the failed token.
	require.Len(t, snapshots.tokenMetrics, 1)
	require.Equal(t, "0xb1", snapshots.tokenMetrics[0].ContractAddress)
	require.Len(t, snapshots.ecosystem, 1)
	require.Equal(t, 1, snapshots.ecosystem[0].TokenCount)
	require.Equal(t, 100.0, snapshots.ecosystem[0].TotalMarketCap)
}

func TestRunRefresh_LowLiquidityClassification(t *testing.T) {
	tokens := newFakeTokenStore(trackedToken("0xliq"), trackedToken("0xdry"))
	snapshots := newFakeSnapshotStore()
	dex := &fakeDex{markets: map[string]dexscreener.TokenMarket{
		"0xliq": marketWith(10000, 500, 5),
		"0xdry": marketWith(9999, 400, 4),
	}}

	svc := newTestService(tokens, snapshots, dex, &fakeAsset{}, &fakeEngine{})
	result, err := svc.RunRefresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, snapshotstore.RunCompleted, result.Status)

	// Exactly the threshold is not low liquidity; below it is.
	require.False(t, tokens.lowLiq["0xliq"])
	require.True(t, tokens.lowLiq["0xdry"])

	// The visible aggregate excludes the low-liquidity token.
	aggregate := snapshots.ecosystem[0]
	require.Equal(t, 900.0, aggregate.TotalMarketCap)
	require.Equal(t, 500.0, aggregate.VisibleMarketCap)
	require.Equal(t, 1, aggregate.VisibleCount)
}

func TestRunRefresh_AllFetchesFailed(t *testing.T) {
	tokens := newFakeTokenStore(trackedToken("0xa1"))
	snapshots := newFakeSnapshotStore()
	dex := &fakeDex{marketsErr: errors.New("upstream down")}

	svc := newTestService(tokens, snapshots, dex, &fakeAsset{}, &fakeEngine{})
	_, err := svc.RunRefresh(context.Background())
	require.Error(t, err)

	// No aggregate row when nothing succeeded.
	require.Empty(t, snapshots.ecosystem)
	require.Contains(t, snapshots.jobRuns, JobRefresh+":"+snapshotstore.RunFailed)
}

func TestRunGuard_RejectsConcurrentRuns(t *testing.T) {
	guard := NewRunGuard()

	release, ok := guard.TryAcquire(JobRefresh)
	require.True(t, ok)

	_, ok = guard.TryAcquire(JobRefresh)
	require.False(t, ok)

	// A different job type is unaffected.
	otherRelease, ok := guard.TryAcquire(JobTvl)
	require.True(t, ok)
	otherRelease()

	release()
	release2, ok := guard.TryAcquire(JobRefresh)
	require.True(t, ok)
	release2()
}

func TestRunAssetPrice_VolumeChangeFromPriorSnapshot(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	change := 2.5
	asset := &fakeAsset{market: &coingecko.AssetMarket{
		ID:                "hyperliquid",
		CurrentPrice:      40,
		MarketCap:         1000,
		TotalVolume:       200,
		PriceChange24hPct: &change,
	}}

	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, asset, &fakeEngine{})

	// First run has no baseline, so volume change stays zero.
	_, err := svc.RunAssetPrice(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots.assetPrices, 1)
	require.Zero(t, snapshots.assetPrices[0].VolumeChange24hPct)

	asset.market.TotalVolume = 300
	_, err = svc.RunAssetPrice(context.Background())
	require.NoError(t, err)
	require.Len(t, snapshots.assetPrices, 2)
	require.InDelta(t, 50.0, snapshots.assetPrices[1].VolumeChange24hPct, 1e-9)
}

func TestRunAssetPrice_UpstreamFailureIsFatal(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	asset := &fakeAsset{err: errors.New("aggregator down")}

	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, asset, &fakeEngine{})
	_, err := svc.RunAssetPrice(context.Background())
	require.Error(t, err)
	require.Empty(t, snapshots.assetPrices)
	require.Contains(t, snapshots.jobRuns, JobAssetPrice+":"+snapshotstore.RunFailed)
}

func TestSubmitAndReconcileRevenue(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	engine := &fakeEngine{
		executions: map[int64]string{4104103: "exec-rev-1"},
		results:    map[string]*dune.Result{},
	}

	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, &fakeAsset{}, engine)

	result, err := svc.SubmitRevenue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "exec-rev-1", result.ExecutionID)
	require.Equal(t, snapshotstore.ExecutionPending, snapshots.executions["exec-rev-1"].Status)

	// Still executing: reconcile leaves the record pending.
	engine.results["exec-rev-1"] = &dune.Result{ExecutionID: "exec-rev-1", State: "QUERY_STATE_EXECUTING"}
	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, snapshotstore.ExecutionPending, snapshots.executions["exec-rev-1"].Status)

	// Completed: rows are persisted and the record settles exactly once.
	completed := &dune.Result{ExecutionID: "exec-rev-1", QueryID: 4104103, State: dune.StateCompleted}
	for i := 1; i <= 8; i++ {
		completed.Result.Rows = append(completed.Result.Rows, map[string]any{
			"day":     time.Date(2025, 6, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			"revenue": 10.0,
		})
	}
	engine.results["exec-rev-1"] = completed

	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Equal(t, snapshotstore.ExecutionCompleted, snapshots.executions["exec-rev-1"].Status)
	require.Len(t, snapshots.revenue, 8)

	// Day 7 is the first with a full trailing window.
	require.Nil(t, snapshots.revenue["2025-06-06"].AnnualizedRevenue)
	require.NotNil(t, snapshots.revenue["2025-06-07"].AnnualizedRevenue)
	require.Equal(t, int64(3650), *snapshots.revenue["2025-06-07"].AnnualizedRevenue)
	require.Equal(t, "exec-rev-1", snapshots.revenue["2025-06-07"].ExecutionID)
}

func TestReconcileRevenue_ResyncOverwritesDay(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	engine := &fakeEngine{
		executions: map[int64]string{4104103: "exec-rev-1"},
		results:    map[string]*dune.Result{},
	}
	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, &fakeAsset{}, engine)

	days := []string{"2025-06-01", "2025-06-02", "2025-06-03"}
	resultFor := func(executionID string, revenue float64) *dune.Result {
		result := &dune.Result{ExecutionID: executionID, QueryID: 4104103, State: dune.StateCompleted}
		for _, day := range days {
			result.Result.Rows = append(result.Result.Rows, map[string]any{
				"day":     day,
				"revenue": revenue,
			})
		}
		return result
	}

	_, err := svc.SubmitRevenue(context.Background())
	require.NoError(t, err)
	engine.results["exec-rev-1"] = resultFor("exec-rev-1", 10.0)
	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)

	// The upstream query restated the same days with corrected values.
	engine.executions[4104103] = "exec-rev-2"
	_, err = svc.SubmitRevenue(context.Background())
	require.NoError(t, err)
	engine.results["exec-rev-2"] = resultFor("exec-rev-2", 12.5)
	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)

	// Still exactly one row per day, each holding the latest sync's value.
	require.Len(t, snapshots.revenue, len(days))
	for _, day := range days {
		require.Equal(t, 12.5, snapshots.revenue[day].Revenue)
		require.Equal(t, "exec-rev-2", snapshots.revenue[day].ExecutionID)
	}
}

func TestReconcile_FailedExecutionWritesNoRows(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	engine := &fakeEngine{
		executions: map[int64]string{4104103: "exec-fail"},
		results: map[string]*dune.Result{
			"exec-fail": {ExecutionID: "exec-fail", QueryID: 4104103, State: dune.StateFailed},
		},
	}

	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, &fakeAsset{}, engine)
	_, err := svc.SubmitRevenue(context.Background())
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)

	require.Equal(t, snapshotstore.ExecutionFailed, snapshots.executions["exec-fail"].Status)
	require.Empty(t, snapshots.revenue)

	// A settled record never transitions again.
	applied, err := snapshots.FinishExecution(context.Background(), "exec-fail", snapshotstore.ExecutionCompleted)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestReconcile_TvlRowsDenormalizeDayTotal(t *testing.T) {
	snapshots := newFakeSnapshotStore()
	engine := &fakeEngine{
		executions: map[int64]string{5218321: "exec-tvl"},
		results: map[string]*dune.Result{
			"exec-tvl": {ExecutionID: "exec-tvl", QueryID: 5218321, State: dune.StateCompleted},
		},
	}
	engine.results["exec-tvl"].Result.Rows = []map[string]any{
		{"day": "2025-06-01", "protocol": "felix", "tvl": 600.0},
		{"day": "2025-06-01", "protocol": "hyperlend", "tvl": 400.0},
		{"day": "2025-06-02", "protocol": "felix", "tvl": 700.0},
	}

	svc := newTestService(newFakeTokenStore(), snapshots, &fakeDex{}, &fakeAsset{}, engine)
	_, err := svc.SubmitTvl(context.Background())
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshots.tvl, 3)
	for _, row := range snapshots.tvl {
		switch row.Day.Day() {
		case 1:
			require.Equal(t, 1000.0, row.TotalTvl)
		case 2:
			require.Equal(t, 700.0, row.TotalTvl)
		}
	}
}

func TestRunSocial_UpdatesLinks(t *testing.T) {
	tokens := newFakeTokenStore(trackedToken("0xa1"), trackedToken("0xa2"))
	site := "https://alpha.example"
	tw := "https://x.com/alpha"
	dex := &fakeDex{socials: map[string]dexscreener.TokenSocials{
		"0xa1": {Address: "0xa1", Website: &site, Twitter: &tw},
	}}

	svc := newTestService(tokens, newFakeSnapshotStore(), dex, &fakeAsset{}, &fakeEngine{})
	result, err := svc.RunSocial(context.Background())
	require.NoError(t, err)
	require.Equal(t, snapshotstore.RunCompleted, result.Status)

	require.Equal(t, "https://alpha.example", tokens.socials["0xa1"].Website)
	require.Equal(t, "https://x.com/alpha", tokens.socials["0xa1"].Twitter)

	// Token without published links keeps its previous values.
	_, wrote := tokens.socials["0xa2"]
	require.False(t, wrote)
}
