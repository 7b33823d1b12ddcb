package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

const externalTransferColumns = `id::TEXT, bank, payer_account_id::TEXT, external_account_id::TEXT,
	amount::TEXT, fee::TEXT, reference::TEXT, pending_ids, state, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// ExternalTransferRepository records cross-bank transfers so ambiguous ones
// survive a restart and can be reconciled.
type ExternalTransferRepository struct {
	db *sql.DB
}

func NewExternalTransferRepository(db *sql.DB) *ExternalTransferRepository {
	return &ExternalTransferRepository{db: db}
}

func (r *ExternalTransferRepository) Save(ctx context.Context, xfer *domain.ExternalTransfer) error {
	pending := make([]string, len(xfer.PendingIDs))
	for i, id := range xfer.PendingIDs {
		pending[i] = id.String()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO external_transfers
			(id, bank, payer_account_id, external_account_id, amount, fee, reference, pending_ids, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
			SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		xfer.ID.String(), int64(xfer.Bank), xfer.PayerAccountID.String(), xfer.ExternalAccountID.String(),
		xfer.Amount.String(), xfer.Fee.String(), strconv.FormatUint(xfer.Reference, 10),
		pq.Array(pending), string(xfer.State), xfer.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

func (r *ExternalTransferRepository) Get(ctx context.Context, id uint128.Uint128) (*domain.ExternalTransfer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+externalTransferColumns+` FROM external_transfers WHERE id = $1`, id.String(),
	)
	xfer, err := scanExternalTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return xfer, nil
}

func (r *ExternalTransferRepository) ListByState(ctx context.Context, state domain.ExternalTransferState, limit int) ([]domain.ExternalTransfer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+externalTransferColumns+` FROM external_transfers
		WHERE state = $1 ORDER BY updated_at, id LIMIT $2`, string(state), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByState: %w", err)
	}
	defer rows.Close()

	var xfers []domain.ExternalTransfer
	for rows.Next() {
		x, err := scanExternalTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByState: scan: %w", err)
		}
		xfers = append(xfers, *x)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByState: rows: %w", err)
	}
	return xfers, nil
}

func scanExternalTransfer(s scanner) (*domain.ExternalTransfer, error) {
	var x domain.ExternalTransfer
	var id, payer, external, amount, fee, reference, state string
	var bank int64
	var pending []string
	err := s.Scan(
		&id, &bank, &payer, &external,
		&amount, &fee, &reference, pq.Array(&pending), &state, &x.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var p numeric
	x.ID = p.u128(id)
	x.Bank = domain.Bank(bank)
	x.PayerAccountID = p.u128(payer)
	x.ExternalAccountID = p.u128(external)
	x.Amount = p.u128(amount)
	x.Fee = p.u128(fee)
	x.Reference = p.u64(reference)
	x.State = domain.ExternalTransferState(state)
	x.PendingIDs = make([]uint128.Uint128, len(pending))
	for i, raw := range pending {
		x.PendingIDs[i] = p.u128(raw)
	}
	if p.err != nil {
		return nil, fmt.Errorf("decode numeric: %w", p.err)
	}
	x.UpdatedAt = x.UpdatedAt.UTC()
	return &x, nil
}

// numeric decodes NUMERIC columns read as text, keeping the first error.
type numeric struct {
	err error
}

func (n *numeric) u128(s string) uint128.Uint128 {
	if n.err != nil {
		return uint128.Zero
	}
	v, err := uint128.FromString(s)
	if err != nil {
		n.err = err
	}
	return v
}

func (n *numeric) u64(s string) uint64 {
	if n.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		n.err = err
	}
	return v
}
