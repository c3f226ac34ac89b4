package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/brent-backend/internal/models"
)

// PriceRepo mirrors the CSV store into Postgres. Like the CSV store it never
// updates a row: a date that already exists keeps its original price.
type PriceRepo struct {
	pool *pgxpool.Pool
}

func NewPriceRepo(pool *pgxpool.Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// RecordBatch inserts the records in one transaction and returns how many
// rows were new.
func (r *PriceRepo) RecordBatch(ctx context.Context, records []models.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, p := range records {
		batch.Queue(
			`INSERT INTO daily_prices (date, price, currency, unit)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (date) DO NOTHING`,
			p.Date, p.Price, p.Currency, p.Unit,
		)
	}

	br := tx.SendBatch(ctx, batch)
	inserted := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("insert: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *PriceRepo) GetLatest(ctx context.Context) (*models.PriceRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT date, price, currency, unit FROM daily_prices ORDER BY date DESC LIMIT 1`,
	)
	p, err := scanPrice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// --- scan helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPrice(row scannable) (*models.PriceRecord, error) {
	var p models.PriceRecord
	var d time.Time
	if err := row.Scan(&d, &p.Price, &p.Currency, &p.Unit); err != nil {
		return nil, err
	}
	p.Date = d.Format("2006-01-02")
	return &p, nil
}
