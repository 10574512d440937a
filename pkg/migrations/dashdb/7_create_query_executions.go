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
		log.Println("creating query_executions table...")
		if err := mghelper.CreateSchema(ctx, db, &snapshotstore.ExecutionDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &snapshotstore.ExecutionDao{}, "status")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping query_executions table...")
		return mghelper.DropTables(ctx, db, &snapshotstore.ExecutionDao{})
	})
}
