package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Ryan-Har/rumorlens/internal/db"
	"github.com/Ryan-Har/rumorlens/internal/db/sqliteDB"
	"github.com/Ryan-Har/rumorlens/internal/logutil"
	"github.com/Ryan-Har/rumorlens/pkg/models"
	"github.com/go-logr/logr"
)

type sqlitePersister struct {
	db      *sql.DB
	queries *sqliteDB.Queries
	log     logr.Logger
}

// NewSqlite returns a Persister over the client_storage table of conn.
// The schema must already be migrated.
func NewSqlite(logger logr.Logger, conn *sql.DB) *sqlitePersister {
	return &sqlitePersister{
		db:      conn,
		queries: sqliteDB.New(conn),
		log:     logger.WithName("sqlite"),
	}
}

func (p *sqlitePersister) Load(ctx context.Context) (string, string, error) {
	defer logutil.NewTimingLogger(p.log, time.Now(), "executed sql query", "method", "load tokens")()

	access, err := p.get(ctx, KeyAccessToken)
	if err != nil {
		return "", "", err
	}
	refresh, err := p.get(ctx, KeyRefreshToken)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (p *sqlitePersister) get(ctx context.Context, key string) (string, error) {
	row, err := p.queries.GetValue(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		_, err = db.WrapErrorIfBusy("get "+key, err)
		return "", models.NewStorageError("get "+key, err)
	}
	return row.Value, nil
}

func (p *sqlitePersister) Save(ctx context.Context, access, refresh string) error {
	defer logutil.NewTimingLogger(p.log, time.Now(), "executed sql query", "method", "save tokens")()

	return p.inTx(ctx, "save tokens", func(q *sqliteDB.Queries) error {
		now := time.Now().Unix()
		for _, kv := range [][2]string{{KeyAccessToken, access}, {KeyRefreshToken, refresh}} {
			var err error
			if kv[1] == "" {
				err = q.DeleteValue(ctx, kv[0])
			} else {
				err = q.SetValue(ctx, sqliteDB.SetValueParams{Key: kv[0], Value: kv[1], UpdatedAt: now})
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *sqlitePersister) Clear(ctx context.Context) error {
	defer logutil.NewTimingLogger(p.log, time.Now(), "executed sql query", "method", "clear tokens")()

	return p.inTx(ctx, "clear tokens", func(q *sqliteDB.Queries) error {
		if err := q.DeleteValue(ctx, KeyAccessToken); err != nil {
			return err
		}
		return q.DeleteValue(ctx, KeyRefreshToken)
	})
}

func (p *sqlitePersister) inTx(ctx context.Context, op string, fn func(q *sqliteDB.Queries) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		_, err = db.WrapErrorIfBusy(op, err)
		return models.NewStorageError(op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(p.queries.WithTx(tx)); err != nil {
		_, err = db.WrapErrorIfBusy(op, err)
		return models.NewStorageError(op, err)
	}
	if err := tx.Commit(); err != nil {
		_, err = db.WrapErrorIfBusy(op, err)
		return models.NewStorageError(op, err)
	}
	return nil
}
