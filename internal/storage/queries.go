package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type ClassificationEntry struct {
	ID          int64
	FileKey     string
	Category    string
	SubCategory string
	Period      string
	Status      string
	Amount      string
	UpdatedBy   string
	UpdatedAt   string
}

type UploadedFile struct {
	Name       string
	FileType   string
	Uploader   string
	UploadedAt string
	Location   string
}

const deleteClassifications = `-- name: DeleteClassifications :exec
DELETE FROM classification_entries WHERE file_key = ?
`

func (q *Queries) DeleteClassifications(ctx context.Context, fileKey string) error {
	_, err := q.db.ExecContext(ctx, deleteClassifications, fileKey)
	return err
}

const insertClassification = `-- name: InsertClassification :exec
INSERT INTO classification_entries (file_key, category, sub_category, period, status, amount, updated_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (file_key, category, sub_category, period) DO UPDATE SET
    status = excluded.status,
    amount = excluded.amount,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at
`

type InsertClassificationParams struct {
	FileKey     string
	Category    string
	SubCategory string
	Period      string
	Status      string
	Amount      string
	UpdatedBy   string
	UpdatedAt   string
}

func (q *Queries) InsertClassification(ctx context.Context, arg InsertClassificationParams) error {
	_, err := q.db.ExecContext(ctx, insertClassification,
		arg.FileKey,
		arg.Category,
		arg.SubCategory,
		arg.Period,
		arg.Status,
		arg.Amount,
		arg.UpdatedBy,
		arg.UpdatedAt,
	)
	return err
}

const listClassifications = `-- name: ListClassifications :many
SELECT id, file_key, category, sub_category, period, status, amount, updated_by, updated_at
FROM classification_entries
WHERE file_key = ?
ORDER BY id
`

func (q *Queries) ListClassifications(ctx context.Context, fileKey string) ([]ClassificationEntry, error) {
	rows, err := q.db.QueryContext(ctx, listClassifications, fileKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClassificationEntry
	for rows.Next() {
		var i ClassificationEntry
		if err := rows.Scan(
			&i.ID,
			&i.FileKey,
			&i.Category,
			&i.SubCategory,
			&i.Period,
			&i.Status,
			&i.Amount,
			&i.UpdatedBy,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listClassificationFileKeys = `-- name: ListClassificationFileKeys :many
SELECT DISTINCT file_key FROM classification_entries ORDER BY file_key
`

func (q *Queries) ListClassificationFileKeys(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listClassificationFileKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		items = append(items, key)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertUploadedFile = `-- name: InsertUploadedFile :exec
INSERT INTO uploaded_files (name, file_type, uploader, uploaded_at, location)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) InsertUploadedFile(ctx context.Context, arg UploadedFile) error {
	_, err := q.db.ExecContext(ctx, insertUploadedFile,
		arg.Name,
		arg.FileType,
		arg.Uploader,
		arg.UploadedAt,
		arg.Location,
	)
	return err
}

const getUploadedFile = `-- name: GetUploadedFile :one
SELECT name, file_type, uploader, uploaded_at, location FROM uploaded_files WHERE name = ?
`

func (q *Queries) GetUploadedFile(ctx context.Context, name string) (UploadedFile, error) {
	row := q.db.QueryRowContext(ctx, getUploadedFile, name)
	var i UploadedFile
	err := row.Scan(
		&i.Name,
		&i.FileType,
		&i.Uploader,
		&i.UploadedAt,
		&i.Location,
	)
	return i, err
}

const listUploadedFiles = `-- name: ListUploadedFiles :many
SELECT name, file_type, uploader, uploaded_at, location FROM uploaded_files ORDER BY uploaded_at DESC, name
`

func (q *Queries) ListUploadedFiles(ctx context.Context) ([]UploadedFile, error) {
	rows, err := q.db.QueryContext(ctx, listUploadedFiles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []UploadedFile
	for rows.Next() {
		var i UploadedFile
		if err := rows.Scan(
			&i.Name,
			&i.FileType,
			&i.Uploader,
			&i.UploadedAt,
			&i.Location,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
