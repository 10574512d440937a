package dashdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/atareh/lightvision/pkg/pgutil/migrations"
	"github.com/atareh/lightvision/pkg/snapshotstore"
)

func init() {
	// The day column is the primary key, which gives the upsert its
	// uniqueness constraint.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating revenue_snapshots table...")
		return mghelper.CreateSchema(ctx, db, &snapshotstore.RevenueDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping revenue_snapshots table...")
		return mghelper.DropTables(ctx, db, &snapshotstore.RevenueDao{})
	})
}
