package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"forex-academy/internal/domain"
	"forex-academy/internal/domain/model"
	"forex-academy/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

type paymentIntentRepo struct{ pool *pgxpool.Pool }

func NewPaymentIntentRepo(pool *pgxpool.Pool) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool}
}

const intentColumns = `id, rail, provider_ref, amount, currency, user_id, program, status, evidence, failure_reason, created_at, updated_at, confirmed_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	var status string
	if err := row.Scan(&p.ID, &p.Rail, &p.ProviderRef, &p.Amount, &p.Currency, &p.UserID, &p.Program, &status, &p.Evidence, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Status = model.IntentStatus(status)
	return p, nil
}

func (r *paymentIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (` + intentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
  provider_ref=$3, status=$8, evidence=$9, failure_reason=$10, updated_at=$12, confirmed_at=$13;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Rail, p.ProviderRef, p.Amount, p.Currency, p.UserID, p.Program, string(p.Status), p.Evidence, p.FailureReason, p.CreatedAt, p.UpdatedAt, p.ConfirmedAt)
	return mapErr(err)
}

func (r *paymentIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	// ids are UUIDs; anything else cannot exist and must not reach the uuid column.
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentIntentRepo) FindByProviderRef(ctx context.Context, tx repository.Tx, rail, ref string) (*model.PaymentIntent, error) {
	if ref == "" {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE rail=$1 AND provider_ref=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, rail, ref)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *paymentIntentRepo) SetProviderRef(ctx context.Context, tx repository.Tx, id, ref string) error {
	const q = `UPDATE payment_intents SET provider_ref=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, ref)
	if err != nil {
		return mapErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentIntentRepo) MarkSubmitted(ctx context.Context, tx repository.Tx, id, evidence string) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status='submitted', evidence=$2, updated_at=NOW()
 WHERE id=$1 AND status='created';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, evidence)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentIntentRepo) RecordDecline(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	const q = `
UPDATE payment_intents
   SET failure_reason=$2, updated_at=NOW()
 WHERE id=$1 AND status IN ('created','submitted');`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

// Finalize only moves created or submitted intents, so a terminal row is never rewritten.
func (r *paymentIntentRepo) Finalize(ctx context.Context, tx repository.Tx, id string, status model.IntentStatus, reason string, at time.Time) (bool, error) {
	if !status.Terminal() {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payment_intents
   SET status=$2::text,
       failure_reason=$3,
       confirmed_at=CASE WHEN $2::text='confirmed' THEN $4::timestamptz ELSE confirmed_at END,
       updated_at=$4::timestamptz
 WHERE id=$1 AND status IN ('created','submitted');`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), reason, at)
	if err != nil {
		return false, mapErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentIntentRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE status='created' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentIntentRepo) ListByStatus(ctx context.Context, tx repository.Tx, rail string, status model.IntentStatus, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + intentColumns + ` FROM payment_intents WHERE ($1::text='' OR rail=$1::text) AND status=$2 ORDER BY updated_at ASC LIMIT $3;`
	return r.list(ctx, tx, q, rail, string(status), limit)
}

func (r *paymentIntentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.PaymentIntent, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
