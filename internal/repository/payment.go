package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pairly/wallet/internal/domain"
	"github.com/pairly/wallet/internal/infra"
)

const tokenColumns = `id, user_id, status, gateway_uid, gateway_token, raw_payload,
	amount_cents, currency, created_at, updated_at`

type paymentTokenRepo struct{}

// NewPaymentTokenRepository returns a pgx-backed PaymentTokenRepository.
func NewPaymentTokenRepository() PaymentTokenRepository {
	return &paymentTokenRepo{}
}

func (r *paymentTokenRepo) Create(ctx context.Context, db DBTX, t *domain.PaymentToken) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Currency == "" {
		t.Currency = domain.Currency
	}
	err := db.QueryRow(ctx, `
		INSERT INTO payment_tokens (id, user_id, status, amount_cents, currency)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.UserID, string(t.Status), infra.NumericFromCents(t.AmountCents), t.Currency,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert payment token: %w", err)
	}
	return nil
}

func (r *paymentTokenRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.PaymentToken, error) {
	row := db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM payment_tokens WHERE id = $1`, id)
	return scanPaymentToken(row)
}

func (r *paymentTokenRepo) MarkPending(ctx context.Context, db DBTX, id uuid.UUID, gatewayToken string, raw []byte) (*domain.PaymentToken, error) {
	row := db.QueryRow(ctx, `
		UPDATE payment_tokens
		SET status = 'PENDING', gateway_token = $2, raw_payload = $3, updated_at = now()
		WHERE id = $1 AND status = 'CREATED'
		RETURNING `+tokenColumns, id, gatewayToken, jsonOrNull(raw))
	t, err := scanPaymentToken(row)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("payment token %s is not in CREATED state", id)
	}
	return t, nil
}

func (r *paymentTokenRepo) ApplyVerdict(ctx context.Context, db DBTX, id uuid.UUID, u domain.PaymentTokenUpdate) (*domain.PaymentToken, error) {
	row := db.QueryRow(ctx, `
		UPDATE payment_tokens
		SET status = CASE WHEN status = 'SUCCESSFUL' THEN status ELSE $2 END,
		    gateway_uid = COALESCE($3, gateway_uid),
		    raw_payload = COALESCE($4, raw_payload),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+tokenColumns, id, string(u.Status), u.GatewayUID, jsonOrNull(u.RawPayload))
	return scanPaymentToken(row)
}

func jsonOrNull(raw []byte) interface{} {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return json.RawMessage(raw)
}

func scanPaymentToken(row pgx.Row) (*domain.PaymentToken, error) {
	var t domain.PaymentToken
	var amount pgtype.Numeric
	var raw []byte
	err := row.Scan(
		&t.ID, &t.UserID, &t.Status, &t.GatewayUID, &t.GatewayToken, &raw,
		&amount, &t.Currency, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment token: %w", err)
	}
	if len(raw) > 0 {
		t.RawPayload = raw
	}
	t.AmountCents, err = infra.CentsFromNumeric(amount)
	if err != nil {
		return nil, fmt.Errorf("convert payment token amount: %w", err)
	}
	return &t, nil
}
