package dashdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/atareh/lightvision/pkg/pgutil/migrations"
	"github.com/atareh/lightvision/pkg/tokenstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating tokens table...")
		if err := mghelper.CreateSchema(ctx, db, &tokenstore.TokenDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &tokenstore.TokenDao{}, "enabled", "hidden")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping tokens table...")
		return mghelper.DropTables(ctx, db, &tokenstore.TokenDao{})
	})
}
