package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_ratings.sql
var createRatingsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createRatingsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS ratings;
ALTER TABLE quizzes DROP COLUMN IF EXISTS rating_count, DROP COLUMN IF EXISTS rating_sum`)
			return err
		},
	)
}
