package repository

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// goose keeps its filesystem and dialect in package state
var gooseMu sync.Mutex

// Migrate applies the embedded migrations for db's dialect.
func Migrate(ctx context.Context, db *bun.DB, logger accounts.Logger) error {
	dir, gooseDialect, err := migrationTarget(db)
	if err != nil {
		return err
	}

	migrations, err := fs.Sub(accounts.GetMigrationsFS(), "data/sql/migrations/"+dir)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if logger != nil {
		goose.SetLogger(gooseLogger{logger})
	}

	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations").
			WithMetadata(map[string]any{"dialect": dir})
	}
	return nil
}

func migrationTarget(db *bun.DB) (dir string, gooseDialect string, err error) {
	switch db.Dialect().Name() {
	case dialect.SQLite:
		return "sqlite", "sqlite3", nil
	case dialect.PG:
		return "postgres", "postgres", nil
	}
	return "", "", goerrors.New("no migrations for dialect", goerrors.CategoryBadInput).
		WithMetadata(map[string]any{"dialect": db.Dialect().Name().String()})
}

type gooseLogger struct {
	logger accounts.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	l.logger.Error(msg)
	panic(msg)
}
