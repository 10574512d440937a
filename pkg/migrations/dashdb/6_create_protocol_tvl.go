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
		log.Println("creating protocol_tvl_snapshots table...")
		if err := mghelper.CreateSchema(ctx, db, &snapshotstore.ProtocolTvlDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &snapshotstore.ProtocolTvlDao{}, "day")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping protocol_tvl_snapshots table...")
		return mghelper.DropTables(ctx, db, &snapshotstore.ProtocolTvlDao{})
	})
}
