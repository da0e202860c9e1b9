package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"lakumart/backoffice/internal/domain"
)

// PostgresStore reads offline records that the sync bridge mirrors into a
// Postgres table. Each row keeps the untouched device payload as JSONB so the
// mirror carries exactly what the device recorded; normalization always
// happens here at read time, never on the write path.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offline_transactions (
			id          text PRIMARY KEY,
			payload     jsonb NOT NULL,
			recorded_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.Transaction, int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload
		FROM offline_transactions
		ORDER BY recorded_at DESC
	`)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	raws := make([]RawRecord, 0, 64)
	skipped := 0
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, 0, err
		}

		var raw RawRecord
		if err := json.Unmarshal(payload, &raw); err != nil {
			skipped++
			log.Printf("[ledger] WARN: skipping undecodable offline row id=%s: %v", id, err)
			continue
		}
		if raw.ID == "" {
			raw.ID = id
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	transactions, dropped := NormalizeAll(raws, fallbackCashierFromContext(ctx))
	return transactions, skipped + dropped, nil
}
