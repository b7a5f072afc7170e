package repository

import (
	"context"
	"database/sql"
)

// LedgerRepo manages the token_ledger table, the single source of truth
// for a user's token balance.  Every grant and debit is a row; the
// balance is the sum of deltas.  Debits always happen inside a
// transaction that locks the user's rows first, so two concurrent
// debits cannot both observe the same balance.
type LedgerRepo struct{ DB *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{DB: db} }

// Ledger entry reasons.  The ref column carries the related record id
// (generation id for debits, package id for purchases) when applicable.
const (
	ReasonSignupGrant      = "signup_grant"
	ReasonPurchase         = "purchase"
	ReasonGeneration       = "generation"
	ReasonWatermarkRemoval = "watermark_removal"
)

// Balance returns the current token balance for a user.  A user with no
// ledger rows has balance zero.
func (r *LedgerRepo) Balance(ctx context.Context, userID uint64) (int, error) {
	var bal int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(delta),0) FROM token_ledger WHERE user_id=?",
		userID).Scan(&bal)
	if err != nil {
		return 0, err
	}
	return bal, nil
}

// BalanceForUpdateTx reads the balance inside tx while locking the user's
// ledger rows.  Callers debit only after this read, which serializes
// concurrent debits on the same user.
func (r *LedgerRepo) BalanceForUpdateTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
	var bal int
	err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(delta),0) FROM token_ledger WHERE user_id=? FOR UPDATE",
		userID).Scan(&bal)
	if err != nil {
		return 0, err
	}
	return bal, nil
}

// Credit inserts a positive ledger entry.  Used for signup grants and
// purchases; amount must be > 0.
func (r *LedgerRepo) Credit(ctx context.Context, userID uint64, amount int, reason, ref string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO token_ledger (user_id, delta, reason, ref) VALUES (?,?,?,NULLIF(?,''))",
		userID, amount, reason, ref)
	return err
}

// DebitTx inserts a single-token debit row inside tx.  The caller is
// responsible for having locked and checked the balance first.
func (r *LedgerRepo) DebitTx(ctx context.Context, tx *sql.Tx, userID uint64, reason, ref string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO token_ledger (user_id, delta, reason, ref) VALUES (?,-1,?,NULLIF(?,''))",
		userID, reason, ref)
	return err
}
