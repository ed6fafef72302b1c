package ingest

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createConsumptionTable = `
	CREATE TABLE IF NOT EXISTS consumption_records (
		id             TEXT PRIMARY KEY,
		entity_id      TEXT,
		document_type  TEXT NOT NULL,
		consumption    INTEGER,
		billing_date   TIMESTAMPTZ NOT NULL,
		extracted_text TEXT NOT NULL,
		confidence     DOUBLE PRECISION NOT NULL,
		image_path     TEXT,
		token_id       TEXT NOT NULL UNIQUE,
		created_at     TIMESTAMPTZ NOT NULL
	)
`

// Postgres implements Recorder and RecordLister on a PostgreSQL table
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and makes sure the table exists
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := pool.Exec(ctx, createConsumptionTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating consumption_records table: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// SaveConsumption inserts a record. A token id can only ever produce one row.
func (p *Postgres) SaveConsumption(ctx context.Context, record *ConsumptionRecord) error {
	query := `
		INSERT INTO consumption_records
			(id, entity_id, document_type, consumption, billing_date, extracted_text, confidence, image_path, token_id, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
	`
	_, err := p.pool.Exec(ctx, query,
		record.ID,
		record.EntityID,
		string(record.DocumentType),
		record.Consumption,
		record.BillingDate,
		record.ExtractedText,
		record.Confidence,
		record.ImagePath,
		record.TokenID,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting consumption record: %w", err)
	}
	return nil
}

// ListConsumptions returns all records, newest billing date first
func (p *Postgres) ListConsumptions(ctx context.Context) ([]*ConsumptionRecord, error) {
	query := `
		SELECT id, COALESCE(entity_id, ''), document_type, consumption, billing_date,
			extracted_text, confidence, COALESCE(image_path, ''), token_id, created_at
		FROM consumption_records
		ORDER BY billing_date DESC
	`
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying consumption records: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*ConsumptionRecord, error) {
		var r ConsumptionRecord
		err := row.Scan(
			&r.ID,
			&r.EntityID,
			&r.DocumentType,
			&r.Consumption,
			&r.BillingDate,
			&r.ExtractedText,
			&r.Confidence,
			&r.ImagePath,
			&r.TokenID,
			&r.CreatedAt,
		)
		return &r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning consumption records: %w", err)
	}
	return records, nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
