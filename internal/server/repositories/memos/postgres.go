package memos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/common"
	"github.com/dmitrijs2005/memorelay/internal/dbx"
	"github.com/dmitrijs2005/memorelay/internal/server/models"
)

// PostgresRepository implements memo storage over a dbx.DBTX (*sql.DB or *sql.Tx).
// Insert runs in a transaction; every other method is a single statement.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert adds the memo. A row that expired at or before m.CreatedAt is
// removed first; a live row makes the insert a no-op and ErrCollision is
// returned. When the repository is bound to an open transaction the
// statements join it.
func (r *PostgresRepository) Insert(ctx context.Context, m *models.Memo) error {
	b, ok := r.db.(dbx.TxBeginner)
	if !ok {
		return insertMemo(ctx, r.db, m)
	}
	return dbx.WithTx(ctx, b, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return insertMemo(ctx, tx, m)
	})
}

func insertMemo(ctx context.Context, db dbx.DBTX, m *models.Memo) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM memos WHERE id=$1 AND expires_at <= $2`, m.ID, m.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	query := `
		INSERT INTO memos (id, ciphertext, iv, salt, kdf, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING;
	`
	res, err := db.ExecContext(ctx, query,
		m.ID, m.Ciphertext, m.IV, m.Salt, nullableJSON(m.KDF), m.CreatedAt.UTC(), m.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrCollision
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Memo, error) {
	query := `SELECT id, ciphertext, iv, salt, kdf, created_at, expires_at FROM memos WHERE id=$1`
	return scanMemo(r.db.QueryRowContext(ctx, query, id))
}

// Take deletes the row and returns its contents in one statement.
func (r *PostgresRepository) Take(ctx context.Context, id string) (*models.Memo, error) {
	query := `DELETE FROM memos WHERE id=$1 RETURNING id, ciphertext, iv, salt, kdf, created_at, expires_at`
	return scanMemo(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) DeleteIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `DELETE FROM memos WHERE id=$1 AND expires_at <= $2`
	res, err := r.db.ExecContext(ctx, query, id, now.UTC())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM memos WHERE expires_at <= $1`
	res, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	return nil
}

func scanMemo(row *sql.Row) (*models.Memo, error) {
	var m models.Memo
	var kdf []byte
	err := row.Scan(&m.ID, &m.Ciphertext, &m.IV, &m.Salt, &kdf, &m.CreatedAt, &m.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("scan memo: %w", err)
	}
	if len(kdf) > 0 {
		m.KDF = kdf
	}
	return &m, nil
}

func nullableJSON(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return string(v)
}
