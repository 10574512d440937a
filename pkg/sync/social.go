package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atareh/lightvision/internal/metrics"
	apperrors "github.com/atareh/lightvision/pkg/app/errors"
	"github.com/atareh/lightvision/pkg/snapshotstore"
	"github.com/atareh/lightvision/pkg/sources/dexscreener"
	"github.com/atareh/lightvision/pkg/token"
)

// RunSocial refreshes website and social links for every enabled token.
// Tokens without link metadata keep their previous values.
func (s *syncService) RunSocial(ctx context.Context) (*RunResult, error) {
	release, ok := s.guard.TryAcquire(JobSocial)
	if !ok {
		return nil, apperrors.LockedError(nil, "social sync already running")
	}
	defer release()

	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	tokens, err := s.tokens.ListEnabledTokens(ctx)
	if err != nil {
		s.recordRun(ctx, JobSocial, snapshotstore.RunFailed, correlationID, err.Error(), startedAt)
		return nil, fmt.Errorf("failed to list enabled tokens: %w", err)
	}
	if len(tokens) == 0 {
		s.recordRun(ctx, JobSocial, snapshotstore.RunCompleted, correlationID, "no enabled tokens", startedAt)
		return &RunResult{
			JobType:       JobSocial,
			Status:        snapshotstore.RunCompleted,
			CorrelationID: correlationID,
			Message:       "no enabled tokens",
		}, nil
	}

	socials, failedAddrs := s.fetchSocialBatches(ctx, tokens)

	var succeeded, failed int
	for _, tok := range tokens {
		if failedAddrs[tok.ContractAddress] {
			failed++
			continue
		}
		entry, ok := socials[tok.ContractAddress]
		if !ok {
			// No link metadata published for this token; nothing to write.
			succeeded++
			continue
		}
		links := token.Socials{
			Website:  strDeref(entry.Website),
			Twitter:  strDeref(entry.Twitter),
			Telegram: strDeref(entry.Telegram),
			Discord:  strDeref(entry.Discord),
		}
		if err := s.tokens.UpdateSocials(ctx, tok.ContractAddress, links); err != nil {
			s.logger.Error("failed to update token socials",
				zap.String("contract_address", tok.ContractAddress),
				zap.Error(err))
			failed++
			continue
		}
		succeeded++
	}

	status := batchStatus(succeeded, failed)
	message := fmt.Sprintf("%d updated, %d failed", succeeded, failed)
	s.recordRun(ctx, JobSocial, status, correlationID, message, startedAt)

	s.logger.Info("social sync finished",
		zap.String("correlation_id", correlationID),
		zap.String("status", status),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed))

	result := &RunResult{
		JobType:       JobSocial,
		Status:        status,
		CorrelationID: correlationID,
		Succeeded:     succeeded,
		Failed:        failed,
		Message:       message,
	}
	if status == snapshotstore.RunFailed {
		return result, apperrors.DependencyError(nil, "all social fetches failed")
	}
	return result, nil
}

func (s *syncService) fetchSocialBatches(ctx context.Context, tokens []*token.Token) (map[string]dexscreener.TokenSocials, map[string]bool) {
	var (
		mu          stdsync.Mutex
		socials     = make(map[string]dexscreener.TokenSocials)
		failedAddrs = make(map[string]bool)
	)

	pool := pond.NewPool(s.opts.FetchConcurrency)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)

	for _, batch := range chunkAddresses(tokens, dexscreener.MaxBatchSize) {
		batch := batch
		group.Submit(func() {
			fetched, err := s.dex.FetchSocials(group.Context(), batch)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.UpstreamErrors.WithLabelValues("dexscreener").Inc()
				s.logger.Warn("social batch fetch failed",
					zap.Int("batch_size", len(batch)),
					zap.Error(err))
				for _, addr := range batch {
					failedAddrs[addr] = true
				}
				return
			}
			for addr, entry := range fetched {
				socials[addr] = entry
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("social fetch group encountered error", zap.Error(err))
	}
	return socials, failedAddrs
}

func strDeref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
