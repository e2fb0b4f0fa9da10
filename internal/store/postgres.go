package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// PostgresStore implements Store on PostgreSQL. Schema, preview rows and
// suggested questions are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and migrates.
func NewPostgresStore(ctx context.Context, connURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().Msg("PostgreSQL store initialized")
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cg_datasets (
			id                  TEXT PRIMARY KEY,
			owner_id            TEXT NOT NULL,
			dataset_name        TEXT NOT NULL,
			status              TEXT NOT NULL,
			column_schema       JSONB NOT NULL DEFAULT '{}',
			preview_data        JSONB NOT NULL DEFAULT '[]',
			suggested_questions JSONB NOT NULL DEFAULT '[]',
			storage_object_path TEXT NOT NULL DEFAULT '',
			row_count           INTEGER NOT NULL DEFAULT 0,
			error               TEXT NOT NULL DEFAULT '',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_cg_datasets_owner ON cg_datasets (owner_id, created_at DESC);
	`)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const datasetColumns = `id, owner_id, dataset_name, status, column_schema, preview_data,
	suggested_questions, storage_object_path, row_count, error, created_at, updated_at`

func (s *PostgresStore) ListDatasets(ctx context.Context, owner string, filter ListFilter) ([]models.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM cg_datasets WHERE ($1 = '' OR owner_id = $1)`
	args := []any{owner}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var result []models.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (*models.Dataset, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+datasetColumns+` FROM cg_datasets WHERE id = $1`, id)
	d, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ErrNotFound{Entity: "dataset", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}
	return d, nil
}

func (s *PostgresStore) CreateDataset(ctx context.Context, ds *models.Dataset) error {
	schema, preview, questions, err := encodeDatasetJSON(ds)
	if err != nil {
		return err
	}
	created := ds.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO cg_datasets (`+datasetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			dataset_name = EXCLUDED.dataset_name,
			status = EXCLUDED.status,
			column_schema = EXCLUDED.column_schema,
			preview_data = EXCLUDED.preview_data,
			suggested_questions = EXCLUDED.suggested_questions,
			storage_object_path = EXCLUDED.storage_object_path,
			row_count = EXCLUDED.row_count,
			error = EXCLUDED.error,
			updated_at = NOW()`,
		ds.ID, ds.OwnerID, ds.Name, string(ds.Status), schema, preview, questions,
		ds.StorageObjectPath, ds.RowCount, ds.Error, created)
	if err != nil {
		return fmt.Errorf("create dataset %s: %w", ds.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateDataset(ctx context.Context, ds *models.Dataset) error {
	schema, preview, questions, err := encodeDatasetJSON(ds)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE cg_datasets SET
			dataset_name = $2, status = $3, column_schema = $4, preview_data = $5,
			suggested_questions = $6, storage_object_path = $7, row_count = $8,
			error = $9, updated_at = NOW()
		WHERE id = $1`,
		ds.ID, ds.Name, string(ds.Status), schema, preview, questions,
		ds.StorageObjectPath, ds.RowCount, ds.Error)
	if err != nil {
		return fmt.Errorf("update dataset %s: %w", ds.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "dataset", Key: ds.ID}
	}
	return nil
}

func (s *PostgresStore) DeleteDataset(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cg_datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{Entity: "dataset", Key: id}
	}
	return nil
}

func encodeDatasetJSON(ds *models.Dataset) (schema, preview, questions []byte, err error) {
	if schema, err = json.Marshal(ds.ColumnSchema); err != nil {
		return nil, nil, nil, fmt.Errorf("encode column_schema: %w", err)
	}
	rows := ds.PreviewData
	if rows == nil {
		rows = []models.Row{}
	}
	if preview, err = json.Marshal(rows); err != nil {
		return nil, nil, nil, fmt.Errorf("encode preview_data: %w", err)
	}
	qs := ds.SuggestedQuestions
	if qs == nil {
		qs = []string{}
	}
	if questions, err = json.Marshal(qs); err != nil {
		return nil, nil, nil, fmt.Errorf("encode suggested_questions: %w", err)
	}
	return schema, preview, questions, nil
}

func scanDataset(row pgx.Row) (*models.Dataset, error) {
	var (
		d                          models.Dataset
		status                     string
		schema, preview, questions []byte
	)
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &status, &schema, &preview,
		&questions, &d.StorageObjectPath, &d.RowCount, &d.Error, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = models.DatasetStatus(status)
	if err := json.Unmarshal(schema, &d.ColumnSchema); err != nil {
		return nil, fmt.Errorf("decode column_schema: %w", err)
	}
	if err := json.Unmarshal(preview, &d.PreviewData); err != nil {
		return nil, fmt.Errorf("decode preview_data: %w", err)
	}
	if err := json.Unmarshal(questions, &d.SuggestedQuestions); err != nil {
		return nil, fmt.Errorf("decode suggested_questions: %w", err)
	}
	return &d, nil
}
