package sqliteDB

import (
	"context"
)

const deleteValue = `-- name: DeleteValue :exec
DELETE FROM client_storage WHERE key = ?
`

func (q *Queries) DeleteValue(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, deleteValue, key)
	return err
}

const getValue = `-- name: GetValue :one
SELECT key, value, updated_at FROM client_storage WHERE key = ?
`

func (q *Queries) GetValue(ctx context.Context, key string) (ClientStorage, error) {
	row := q.db.QueryRowContext(ctx, getValue, key)
	var i ClientStorage
	err := row.Scan(&i.Key, &i.Value, &i.UpdatedAt)
	return i, err
}

const setValue = `-- name: SetValue :exec
INSERT INTO client_storage (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`

type SetValueParams struct {
	Key       string
	Value     string
	UpdatedAt int64
}

func (q *Queries) SetValue(ctx context.Context, arg SetValueParams) error {
	_, err := q.db.ExecContext(ctx, setValue, arg.Key, arg.Value, arg.UpdatedAt)
	return err
}
