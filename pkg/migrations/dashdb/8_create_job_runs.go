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
		log.Println("creating job_runs table...")
		if err := mghelper.CreateSchema(ctx, db, &snapshotstore.JobRunDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &snapshotstore.JobRunDao{}, "job_type", "started_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping job_runs table...")
		return mghelper.DropTables(ctx, db, &snapshotstore.JobRunDao{})
	})
}
