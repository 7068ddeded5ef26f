// Package postgres implements store.Store on a single JSONB records table.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the records table and its indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Helpers

const recordColumns = `id::text, data, created_at, updated_at`

func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		id                 string
		data               []byte
		createdAt, updated time.Time
	)
	if err := row.Scan(&id, &data, &createdAt, &updated); err != nil {
		return nil, mapError(err)
	}

	rec := store.Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	rec[store.FieldID] = id
	rec[store.FieldCreatedAt] = store.FormatTime(createdAt)
	rec[store.FieldUpdatedAt] = store.FormatTime(updated)
	return rec, nil
}

func scanRecords(rows pgx.Rows) ([]store.Record, error) {
	defer rows.Close()

	out := []store.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// encodeData drops the columns kept outside the JSON document.
func encodeData(fields store.Record) (string, error) {
	data := make(store.Record, len(fields))
	for k, v := range fields {
		switch k {
		case store.FieldID, store.FieldCreatedAt, store.FieldUpdatedAt:
			continue
		}
		data[k] = v
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	return string(b), nil
}

// mapError translates driver errors into store sentinels. Connection level
// failures are reported as ErrUnavailable so the policy layer may retry them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		case "40001", "40P01", "53300", "57P01", "57P02", "57P03":
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

// Interface methods

func (s *Store) Create(ctx context.Context, entity store.EntityType, fields store.Record) (store.Record, error) {
	id := fields.ID()
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("record id %q: %w", id, err)
	}
	data, err := encodeData(fields)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO records (entity_type, id, data, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		RETURNING `+recordColumns,
		string(entity), id, data)
	return scanRecord(row)
}

func (s *Store) GetByID(ctx context.Context, entity store.EntityType, id string) (store.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE entity_type = $1 AND id = $2
	`, string(entity), id)
	return scanRecord(row)
}

func (s *Store) List(ctx context.Context, entity store.EntityType, offset, limit int) ([]store.Record, error) {
	if offset < 0 {
		offset = 0
	}
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE entity_type = $1
		ORDER BY created_at, id
		OFFSET $2
		LIMIT $3
	`, string(entity), offset, lim)
	if err != nil {
		return nil, mapError(err)
	}
	return scanRecords(rows)
}

func (s *Store) Update(ctx context.Context, entity store.EntityType, id string, patch store.Record) (store.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrNotFound
	}
	data, err := encodeData(patch)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE records
		SET data = data || $3::jsonb,
		    updated_at = now()
		WHERE entity_type = $1 AND id = $2
		RETURNING `+recordColumns,
		string(entity), id, data)
	return scanRecord(row)
}

func (s *Store) Delete(ctx context.Context, entity store.EntityType, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM records
		WHERE entity_type = $1 AND id = $2
	`, string(entity), id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) QueryByField(ctx context.Context, entity store.EntityType, field string, value any) ([]store.Record, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE entity_type = $1 AND data @> $2::jsonb
		ORDER BY created_at, id
	`, string(entity), string(filter))
	if err != nil {
		return nil, mapError(err)
	}
	return scanRecords(rows)
}

func (s *Store) QueryRange(ctx context.Context, entity store.EntityType, field string, low, high any) ([]store.Record, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch lo := low.(type) {
	case string:
		hi, ok := high.(string)
		if !ok {
			return nil, fmt.Errorf("range bounds for %s must share a type", field)
		}
		rows, err = s.pool.Query(ctx, `
			SELECT `+recordColumns+`
			FROM records
			WHERE entity_type = $1
			  AND jsonb_typeof(data->$2) = 'string'
			  AND (data->>$2) COLLATE "C" BETWEEN $3 AND $4
			ORDER BY created_at, id
		`, string(entity), field, lo, hi)
	case int, int64, float64:
		rows, err = s.pool.Query(ctx, `
			SELECT `+recordColumns+`
			FROM records
			WHERE entity_type = $1
			  AND CASE WHEN jsonb_typeof(data->$2) = 'number'
			           THEN (data->>$2)::numeric BETWEEN $3::numeric AND $4::numeric
			           ELSE false END
			ORDER BY created_at, id
		`, string(entity), field, toFloat(lo), toFloat(high))
	default:
		return nil, fmt.Errorf("unsupported range bound type %T", low)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return scanRecords(rows)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func (s *Store) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}
