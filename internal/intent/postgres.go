package intent

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toluade/factorpool/internal/domain"
	"github.com/toluade/factorpool/internal/models"
)

// PostgresStore persists intents in Postgres. The unique index on
// ref_hash plus ON CONFLICT DO NOTHING makes the duplicate check and the
// insert a single atomic statement; smb_address and onchain_invoice_id
// are indexed for reconciliation queries.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps a pgx connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const intentSchema = `
CREATE TABLE IF NOT EXISTS intents (
	intent_id TEXT PRIMARY KEY,
	smb_address TEXT NOT NULL,
	face_amount BIGINT NOT NULL,
	advance_amount BIGINT NOT NULL,
	fee_bps INTEGER NOT NULL,
	pool INTEGER NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	ref_hash TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	tx_hash TEXT NOT NULL DEFAULT '',
	onchain_invoice_id BIGINT,
	repay_tx_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS intents_ref_hash_idx ON intents (ref_hash);
CREATE INDEX IF NOT EXISTS intents_smb_address_idx ON intents (smb_address);
CREATE INDEX IF NOT EXISTS intents_invoice_idx ON intents (onchain_invoice_id) WHERE onchain_invoice_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS intents_status_idx ON intents (status);
`

// EnsureSchema creates the intents table and its indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, intentSchema); err != nil {
		return fmt.Errorf("ensure intents schema: %w", err)
	}
	return nil
}

const intentColumns = `intent_id, smb_address, face_amount, advance_amount, fee_bps, pool, due_date, ref_hash, status, tx_hash, onchain_invoice_id, repay_tx_hash, created_at, updated_at`

func (s *PostgresStore) Insert(ctx context.Context, it *models.Intent) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO intents (intent_id, smb_address, face_amount, advance_amount, fee_bps, pool, due_date, ref_hash, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ref_hash) DO NOTHING`,
		it.ID, it.SMBAddress, int64(it.FaceAmount), int64(it.AdvanceAmount), int32(it.FeeBPS),
		int32(it.Pool), it.DueDate, it.RefHash.String(), it.Status)
	if err != nil {
		return fmt.Errorf("insert intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateReference, it.RefHash)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, intentID string) (*models.Intent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE intent_id = $1`, intentID)
	return scanIntent(row)
}

func (s *PostgresStore) GetByRefHash(ctx context.Context, ref domain.RefHash) (*models.Intent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE ref_hash = $1`, ref.String())
	return scanIntent(row)
}

func (s *PostgresStore) GetByInvoiceID(ctx context.Context, invoiceID uint64) (*models.Intent, error) {
	row := s.db.QueryRow(ctx, `SELECT `+intentColumns+` FROM intents WHERE onchain_invoice_id = $1`, int64(invoiceID))
	return scanIntent(row)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status string, limit int32) ([]*models.Intent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+intentColumns+` FROM intents
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	var out []*models.Intent
	for rows.Next() {
		it, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkFunded(ctx context.Context, intentID, txHash string, invoiceID uint64) error {
	return s.update(ctx, `
		UPDATE intents
		SET status = $2, tx_hash = $3, onchain_invoice_id = $4, updated_at = NOW()
		WHERE intent_id = $1`,
		intentID, domain.IntentStatusFunded, txHash, int64(invoiceID))
}

func (s *PostgresStore) MarkSettled(ctx context.Context, intentID, repayTxHash string) error {
	return s.update(ctx, `
		UPDATE intents
		SET status = $2, repay_tx_hash = $3, updated_at = NOW()
		WHERE intent_id = $1`,
		intentID, domain.IntentStatusSettled, repayTxHash)
}

func (s *PostgresStore) MarkCancelled(ctx context.Context, intentID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE intents
		SET status = $2, updated_at = NOW()
		WHERE intent_id = $1 AND status = $3`,
		intentID, domain.IntentStatusCancelled, domain.IntentStatusPending)
	if err != nil {
		return fmt.Errorf("cancel intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetByID(ctx, intentID); err != nil {
			return err
		}
		return ErrNotCancellable
	}
	return nil
}

func (s *PostgresStore) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanIntent(row pgx.Row) (*models.Intent, error) {
	var (
		it        models.Intent
		face      int64
		advance   int64
		feeBPS    int32
		pool      int32
		refHex    string
		invoiceID *int64
	)
	err := row.Scan(&it.ID, &it.SMBAddress, &face, &advance, &feeBPS, &pool, &it.DueDate,
		&refHex, &it.Status, &it.TxHash, &invoiceID, &it.RepayTxHash, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan intent: %w", err)
	}
	it.FaceAmount = uint64(face)
	it.AdvanceAmount = uint64(advance)
	it.FeeBPS = uint32(feeBPS)
	it.Pool = domain.PoolKind(pool)
	if it.RefHash, err = domain.ParseRefHash(refHex); err != nil {
		return nil, err
	}
	if invoiceID != nil {
		id := uint64(*invoiceID)
		it.InvoiceID = &id
	}
	return &it, nil
}
