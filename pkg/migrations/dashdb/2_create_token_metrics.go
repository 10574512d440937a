package dashdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/atareh/lightvision/pkg/pgutil/migrations"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating token_metric_snapshots table...")
		if err := mghelper.CreateSchema(ctx, db, &snapshotstore.TokenMetricDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &snapshotstore.TokenMetricDao{}, "contract_address", "recorded_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping token_metric_snapshots table...")
		return mghelper.DropTables(ctx, db, &snapshotstore.TokenMetricDao{})
	})
}
