package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lukechampine.com/uint128"

	"github.com/josh-kwaku/retail-bank/internal/domain"
)

// writeLockKey serialises ledger writes across every process sharing the
// database.
const writeLockKey = 0x6c6564676572

const accountColumns = `id, user_data_128, user_data_64, ledger, code, flags,
	debits_pending, debits_posted, credits_pending, credits_posted, timestamp`

const transferColumns = `id, debit_account_id, credit_account_id, amount, pending_id,
	user_data_128, user_data_64, ledger, code, flags, pending_status, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB, now func() time.Time) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{db: db, now: now}
}

// txLoader reads rows inside the write transaction.
type txLoader struct {
	ctx context.Context
	tx  *sql.Tx
}

func (l *txLoader) loadAccount(id uint128.Uint128) (*accountRecord, error) {
	row := l.tx.QueryRowContext(l.ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = $1 FOR UPDATE`, id.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loadAccount: %w", err)
	}
	return a, nil
}

func (l *txLoader) loadTransfer(id uint128.Uint128) (*transferRecord, error) {
	row := l.tx.QueryRowContext(l.ctx,
		`SELECT `+transferColumns+` FROM ledger_transfers WHERE id = $1 FOR UPDATE`, id.String())
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loadTransfer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) begin(ctx context.Context) (*sql.Tx, *clockState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, writeLockKey); err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("acquire write lock: %w", err)
	}
	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT last_timestamp FROM ledger_clock WHERE id = 1`).Scan(&last); err != nil {
		tx.Rollback()
		return nil, nil, fmt.Errorf("read ledger clock: %w", err)
	}
	return tx, &clockState{last: uint64(last)}, nil
}

func (s *PostgresStore) commit(ctx context.Context, tx *sql.Tx, clock *clockState) error {
	if _, err := tx.ExecContext(ctx, `UPDATE ledger_clock SET last_timestamp = $1 WHERE id = 1`, int64(clock.last)); err != nil {
		return fmt.Errorf("advance ledger clock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, account *domain.Account) error {
	tx, clock, err := s.begin(ctx)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	defer tx.Rollback()

	r := toAccountRecord(account)
	r.Timestamp = clock.next(uint64(s.now().UnixNano()))

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, 0, $7)
		ON CONFLICT (id) DO NOTHING`,
		r.ID.String(), r.UserData128.String(), strconv.FormatUint(r.UserData64, 10),
		int64(r.Ledger), int64(r.Code), int64(r.Flags), int64(r.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("CreateAccount: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("CreateAccount: %w", &domain.LedgerConstraintError{Kind: domain.ResultExists})
	}

	if err := s.commit(ctx, tx, clock); err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id uint128.Uint128) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = $1`, id.String())
	r, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	a := r.toDomain()
	return &a, nil
}

func (s *PostgresStore) GetAccounts(ctx context.Context, filter AccountFilter) ([]domain.Account, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}

	var (
		where []string
		args  []any
	)
	if filter.CursorMax != 0 {
		args = append(args, int64(filter.CursorMax))
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if filter.Type != 0 {
		args = append(args, int64(filter.Type))
		where = append(where, fmt.Sprintf("code = $%d", len(args)))
	}
	if !filter.DebitOrderAccountID.IsZero() {
		args = append(args, filter.DebitOrderAccountID.String())
		where = append(where, fmt.Sprintf("user_data_128 = $%d", len(args)))
	}
	args = append(args, filter.Limit)

	query := `SELECT ` + accountColumns + ` FROM ledger_accounts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		r, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("GetAccounts: scan: %w", err)
		}
		accounts = append(accounts, r.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetAccounts: rows: %w", err)
	}
	return accounts, nil
}

func (s *PostgresStore) Transfer(ctx context.Context, transfer domain.Transfer) (uint128.Uint128, error) {
	ids, err := s.TransferLinked(ctx, []domain.Transfer{transfer})
	if err != nil {
		return uint128.Zero, err
	}
	return ids[0], nil
}

func (s *PostgresStore) TransferLinked(ctx context.Context, transfers []domain.Transfer) ([]uint128.Uint128, error) {
	if len(transfers) == 0 || len(transfers) > MaxBatchSize {
		return nil, fmt.Errorf("TransferLinked: batch of %d: %w", len(transfers), domain.ErrInvalidRequest)
	}

	records := toTransferRecords(transfers)
	ids := assignIDs(records)

	tx, clock, err := s.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("TransferLinked: %w", err)
	}
	defer tx.Rollback()

	ws := newWorkingSet(&txLoader{ctx: ctx, tx: tx})
	now := uint64(s.now().UnixNano())
	for i, r := range records {
		r.Timestamp = clock.next(now)
		result, err := ws.apply(r)
		if err != nil {
			return nil, fmt.Errorf("TransferLinked: %w", err)
		}
		if result != domain.ResultOK {
			return nil, fmt.Errorf("TransferLinked: %w", &domain.LedgerConstraintError{Kind: result, Index: i})
		}
	}

	if err := writeBatch(ctx, tx, ws); err != nil {
		return nil, fmt.Errorf("TransferLinked: %w", err)
	}
	if err := s.commit(ctx, tx, clock); err != nil {
		return nil, fmt.Errorf("TransferLinked: %w", err)
	}
	return ids, nil
}

func writeBatch(ctx context.Context, tx *sql.Tx, ws *workingSet) error {
	for _, a := range ws.dirty {
		_, err := tx.ExecContext(ctx,
			`UPDATE ledger_accounts
			SET flags = $2, debits_pending = $3, debits_posted = $4, credits_pending = $5, credits_posted = $6
			WHERE id = $1`,
			a.ID.String(), int64(a.Flags),
			a.DebitsPending.String(), a.DebitsPosted.String(),
			a.CreditsPending.String(), a.CreditsPosted.String(),
		)
		if err != nil {
			return fmt.Errorf("update account %s: %w", a.ID, err)
		}
	}

	for _, t := range ws.created {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_transfers (`+transferColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			t.ID.String(), t.DebitAccountID.String(), t.CreditAccountID.String(),
			t.Amount.String(), t.PendingID.String(), t.UserData128.String(),
			strconv.FormatUint(t.UserData64, 10), int64(t.Ledger), int64(t.Code),
			int64(t.Flags), int64(t.status), int64(t.Timestamp),
		)
		if err != nil {
			return fmt.Errorf("insert transfer %s: %w", t.ID, err)
		}
	}

	for _, p := range ws.resolved {
		_, err := tx.ExecContext(ctx,
			`UPDATE ledger_transfers SET pending_status = $2 WHERE id = $1`,
			p.ID.String(), int64(p.status),
		)
		if err != nil {
			return fmt.Errorf("resolve pending %s: %w", p.ID, err)
		}
	}
	return nil
}

func (s *PostgresStore) GetTransfer(ctx context.Context, id uint128.Uint128) (*domain.Transfer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+` FROM ledger_transfers WHERE id = $1`, id.String())
	r, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransfer: %w", err)
	}
	t := r.toDomain()
	return &t, nil
}

func (s *PostgresStore) GetAccountTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error) {
	if filter.AccountID.IsZero() {
		return nil, fmt.Errorf("GetAccountTransfers: account id required: %w", domain.ErrInvalidRequest)
	}
	transfers, err := s.queryTransfers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("GetAccountTransfers: %w", err)
	}
	return transfers, nil
}

func (s *PostgresStore) GetTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error) {
	filter.AccountID = uint128.Zero
	transfers, err := s.queryTransfers(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("GetTransfers: %w", err)
	}
	return transfers, nil
}

func (s *PostgresStore) queryTransfers(ctx context.Context, filter TransferFilter) ([]domain.Transfer, error) {
	if err := validateLimit(filter.Limit); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.CursorMax != 0 {
		args = append(args, int64(filter.CursorMax))
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)))
	}
	if filter.Reference != 0 {
		args = append(args, strconv.FormatUint(filter.Reference, 10))
		where = append(where, fmt.Sprintf("user_data_64 = $%d", len(args)))
	}
	if !filter.AccountID.IsZero() {
		args = append(args, filter.AccountID.String())
		n := len(args)
		switch filter.Side {
		case domain.TransferSideDebit:
			where = append(where, fmt.Sprintf("debit_account_id = $%d", n))
		case domain.TransferSideCredit:
			where = append(where, fmt.Sprintf("credit_account_id = $%d", n))
		default:
			where = append(where, fmt.Sprintf("(debit_account_id = $%d OR credit_account_id = $%d)", n, n))
		}
	}
	args = append(args, filter.Limit)

	query := `SELECT ` + transferColumns + ` FROM ledger_transfers`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		r, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		transfers = append(transfers, r.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return transfers, nil
}

func (s *PostgresStore) BalanceAndCloseCredit(ctx context.Context, debitAccountID, creditAccountID uint128.Uint128) (uint128.Uint128, uint128.Uint128, error) {
	ids, err := s.TransferLinked(ctx, balanceAndCloseCreditLegs(debitAccountID, creditAccountID))
	if err != nil {
		return uint128.Zero, uint128.Zero, fmt.Errorf("BalanceAndCloseCredit: %w", err)
	}
	return ids[0], ids[1], nil
}

func (s *PostgresStore) InitialiseInternalAccounts(ctx context.Context) error {
	return initialiseInternalAccounts(ctx, s)
}

func scanAccount(s scanner) (*accountRecord, error) {
	var (
		r                                    accountRecord
		id, ud128, ud64                      string
		dPending, dPosted, cPending, cPosted string
		ledger, code, flags, timestamp       int64
	)
	err := s.Scan(&id, &ud128, &ud64, &ledger, &code, &flags,
		&dPending, &dPosted, &cPending, &cPosted, &timestamp)
	if err != nil {
		return nil, err
	}

	p := numericParser{}
	r.ID = p.u128(id)
	r.UserData128 = p.u128(ud128)
	r.UserData64 = p.u64(ud64)
	r.DebitsPending = p.u128(dPending)
	r.DebitsPosted = p.u128(dPosted)
	r.CreditsPending = p.u128(cPending)
	r.CreditsPosted = p.u128(cPosted)
	if p.err != nil {
		return nil, p.err
	}
	r.Ledger = uint32(ledger)
	r.Code = uint16(code)
	r.Flags = AccountFlags(flags)
	r.Timestamp = uint64(timestamp)
	return &r, nil
}

func scanTransfer(s scanner) (*transferRecord, error) {
	var (
		r                                      transferRecord
		id, debitID, creditID, amount, pending string
		ud128, ud64                            string
		ledger, code, flags, status, timestamp int64
	)
	err := s.Scan(&id, &debitID, &creditID, &amount, &pending,
		&ud128, &ud64, &ledger, &code, &flags, &status, &timestamp)
	if err != nil {
		return nil, err
	}

	p := numericParser{}
	r.ID = p.u128(id)
	r.DebitAccountID = p.u128(debitID)
	r.CreditAccountID = p.u128(creditID)
	r.Amount = p.u128(amount)
	r.PendingID = p.u128(pending)
	r.UserData128 = p.u128(ud128)
	r.UserData64 = p.u64(ud64)
	if p.err != nil {
		return nil, p.err
	}
	r.Ledger = uint32(ledger)
	r.Code = uint16(code)
	r.Flags = TransferFlags(flags)
	r.status = pendingStatus(status)
	r.Timestamp = uint64(timestamp)
	return &r, nil
}

// numericParser decodes NUMERIC columns and keeps the first failure.
type numericParser struct {
	err error
}

func (p *numericParser) u128(s string) uint128.Uint128 {
	if p.err != nil {
		return uint128.Zero
	}
	v, err := uint128.FromString(s)
	if err != nil {
		p.err = fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v
}

func (p *numericParser) u64(s string) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return v
}
