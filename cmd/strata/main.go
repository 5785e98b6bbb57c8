// Command strata runs the record lifecycle against a configured database:
// it creates users, posts, comments and tags, eager loads them, and
// exercises soft deletes and optimistic locking.
//
//	strata -config strata.yaml
//	STRATA_DIALECT=postgres STRATA_DSN=postgres://localhost/app?sslmode=disable strata
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/syssam/strata"
	"github.com/syssam/strata/config"
	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
)

func main() {
	path := flag.String("config", "", "path of the YAML configuration file")
	watch := flag.Bool("watch", false, "reload the slow statement threshold when the configuration file changes")
	flag.Parse()

	if err := run(context.Background(), *path, *watch); err != nil {
		fmt.Fprintln(os.Stderr, "strata:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string, watch bool) error {
	loader, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	logger := config.NewLogger("strata", cfg.Log)
	defer func() { _ = logger.Sync() }()

	db, err := sql.Open(cfg.Dialect, cfg.DSN)
	if err != nil {
		return fmt.Errorf("opening %s: %w", cfg.Dialect, err)
	}
	stats := sql.NewStatsDriver(db,
		sql.WithSlowThreshold(cfg.SlowThreshold),
		sql.WithSlowQueryLog(logger),
	)
	if watch && path != "" {
		config.WithLogger(logger)(loader)
		loader.Watch(func(c config.Config) {
			stats.SetSlowThreshold(c.SlowThreshold)
		})
	}
	var drv dialect.Driver = stats
	if cfg.Debug {
		drv = sql.NewDebugDriver(stats, sql.DebugWithLogger(logger))
	}
	client, err := strata.NewClient(drv,
		strata.WithSchemas(User{}, Post{}, Comment{}, Tag{}),
		strata.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	for _, stmt := range ddl(drv.Dialect()) {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	if err := scenario(ctx, client, logger); err != nil {
		return err
	}
	logger.Info("done", zap.Stringer("stats", stats.QueryStats().Stats()))
	return nil
}

func scenario(ctx context.Context, client *strata.Client, logger *zap.Logger) error {
	users := client.MustModel("User")
	user, err := users.Create(ctx, map[string]any{"username": " A@Example.com ", "password": "secret"})
	if err != nil {
		return err
	}
	logger.Info("user created", zap.Any("id", user.Key()), zap.Bool("exists", user.Exists()))

	if err := user.Update(ctx, map[string]any{"username": "b@example.com"}); err != nil {
		return err
	}

	err = client.WithTx(ctx, func(tx *strata.Tx) error {
		author := tx.MustModel("User").Bind(user)
		posts := tx.MustModel("Post")
		tags := tx.MustModel("Tag")
		golang, err := tags.Create(ctx, map[string]any{"name": "go"})
		if err != nil {
			return err
		}
		for _, title := range []string{"records", "relations"} {
			post, err := posts.Create(ctx, map[string]any{"title": title, "user_id": author.Key()})
			if err != nil {
				return err
			}
			if _, err := tx.MustModel("Comment").Create(ctx, map[string]any{"body": "first!", "post_id": post.Key()}); err != nil {
				return err
			}
			pivot, err := post.Pivot("tags")
			if err != nil {
				return err
			}
			if err := pivot.AttachWith(ctx, golang, map[string]any{"created_at": time.Now()}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	loaded, err := users.Query().With("posts.comments", "posts.tags").FindOrFail(ctx, user.Key())
	if err != nil {
		return err
	}
	out, err := loaded.MarshalJSON()
	if err != nil {
		return err
	}
	logger.Info("user loaded", zap.ByteString("json", out))

	stale := users.Bind(loaded)
	if err := loaded.Update(ctx, map[string]any{"username": "c@example.com"}); err != nil {
		return err
	}
	err = stale.Update(ctx, map[string]any{"username": "d@example.com"})
	if !errors.Is(err, strata.ErrOptimisticLock) {
		return fmt.Errorf("expected an optimistic lock conflict, got %v", err)
	}
	logger.Info("stale write rejected", zap.Error(err))

	if err := loaded.Delete(ctx); err != nil {
		return err
	}
	visible, err := users.Query().Count(ctx)
	if err != nil {
		return err
	}
	trashed, err := users.Query().OnlyTrashed().Count(ctx)
	if err != nil {
		return err
	}
	logger.Info("user soft deleted", zap.Int("visible", visible), zap.Int("trashed", trashed))
	return loaded.Restore(ctx)
}
