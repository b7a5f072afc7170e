package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/prankroom/prank-studio/internal/model"
)

// GenerationRepo provides CRUD operations for generation requests.  The
// correctness-critical operation is StartTx: inserting a generation row
// and debiting one token must be a single transaction so a failure can
// never leave a charged-but-no-request or request-but-uncharged state.
type GenerationRepo struct {
	DB     *sql.DB
	Ledger *LedgerRepo
}

func NewGenerationRepo(db *sql.DB, ledger *LedgerRepo) *GenerationRepo {
	return &GenerationRepo{DB: db, Ledger: ledger}
}

// StartParams carries the input to the atomic start operation.
type StartParams struct {
	UserID        uint64
	RoomPhotoID   string
	CharacterSlug string
	ActionSlug    string
	CustomPrompt  *string
	RealismFilter bool
}

// StartTx atomically creates a PENDING generation row and debits one
// token from the user's ledger.  It verifies that the referenced room
// photo belongs to the user.  Returns the new generation id, or
// ErrInsufficientTokens when the locked balance is below 1,
// ErrForbidden when the room photo belongs to someone else, and
// sql.ErrNoRows when it does not exist.  On any error the transaction
// rolls back and no token is consumed.
func (r *GenerationRepo) StartTx(ctx context.Context, p StartParams) (string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Ownership check on the room photo inside the transaction.
	var ownerID uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT user_id FROM room_photos WHERE id=? LIMIT 1",
		p.RoomPhotoID).Scan(&ownerID); err != nil {
		return "", err
	}
	if ownerID != p.UserID {
		return "", ErrForbidden
	}

	// Lock the ledger and check the balance before debiting.
	bal, err := r.Ledger.BalanceForUpdateTx(ctx, tx, p.UserID)
	if err != nil {
		return "", err
	}
	if bal < 1 {
		return "", ErrInsufficientTokens
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO generations
		 (id, user_id, room_photo_id, character_slug, action_slug, custom_prompt, realism_filter, status)
		 VALUES (?,?,?,?,?,?,?,?)`,
		id, p.UserID, p.RoomPhotoID, p.CharacterSlug, p.ActionSlug,
		p.CustomPrompt, p.RealismFilter, model.GenerationPending); err != nil {
		return "", err
	}
	if err := r.Ledger.DebitTx(ctx, tx, p.UserID, ReasonGeneration, id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	committed = true
	return id, nil
}

// GetByIDForUser returns a generation owned by the given user.
// sql.ErrNoRows when it does not exist, ErrForbidden when it belongs to
// a different user.
func (r *GenerationRepo) GetByIDForUser(ctx context.Context, id string, userID uint64) (model.Generation, error) {
	g, err := r.getByID(ctx, id)
	if err != nil {
		return model.Generation{}, err
	}
	if g.UserID != userID {
		return model.Generation{}, ErrForbidden
	}
	return g, nil
}

func (r *GenerationRepo) getByID(ctx context.Context, id string) (model.Generation, error) {
	var (
		g             model.Generation
		customPrompt  sql.NullString
		previewURL    sql.NullString
		failureReason sql.NullString
		completedAt   sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, room_photo_id, character_slug, action_slug, custom_prompt,
		        realism_filter, status, preview_url, watermark_removed, failure_reason,
		        created_at, completed_at
		 FROM generations WHERE id=? LIMIT 1`, id).Scan(
		&g.ID, &g.UserID, &g.RoomPhotoID, &g.CharacterSlug, &g.ActionSlug, &customPrompt,
		&g.RealismFilter, &g.Status, &previewURL, &g.WatermarkRemoved, &failureReason,
		&g.CreatedAt, &completedAt,
	)
	if err != nil {
		return model.Generation{}, err
	}
	if customPrompt.Valid {
		v := customPrompt.String
		g.CustomPrompt = &v
	}
	if previewURL.Valid {
		v := previewURL.String
		g.PreviewURL = &v
	}
	if failureReason.Valid {
		v := failureReason.String
		g.FailureReason = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		g.CompletedAt = &t
	}
	return g, nil
}

// MarkProcessing flips a PENDING generation to PROCESSING.  It is a
// no-op for rows in any other state so repeated invocations cannot
// resurrect a finished generation.
func (r *GenerationRepo) MarkProcessing(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE generations SET status=? WHERE id=? AND status=?",
		model.GenerationProcessing, id, model.GenerationPending)
	return err
}

// MarkCompleted stores the preview URL and completion time.  A nil
// previewURL leaves the row PROCESSING: the worker accepted the job but
// has not produced an image yet.
func (r *GenerationRepo) MarkCompleted(ctx context.Context, id string, previewURL *string) error {
	if previewURL == nil {
		return nil
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE generations SET status=?, preview_url=?, completed_at=? WHERE id=?",
		model.GenerationCompleted, *previewURL, time.Now().UTC(), id)
	return err
}

// MarkFailed records a failure reason.
func (r *GenerationRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE generations SET status=?, failure_reason=? WHERE id=?",
		model.GenerationFailed, reason, id)
	return err
}

// RemoveWatermarkTx atomically debits one token and marks the
// generation's watermark as removed.  The same ledger-lock discipline
// as StartTx applies.  Returns ErrWatermarkAlreadyRemoved when the
// watermark was already paid for, ErrInsufficientTokens when the
// balance is zero, ErrForbidden for foreign rows and sql.ErrNoRows for
// missing ones.
func (r *GenerationRepo) RemoveWatermarkTx(ctx context.Context, id string, userID uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var (
		ownerID uint64
		removed bool
	)
	if err := tx.QueryRowContext(ctx,
		"SELECT user_id, watermark_removed FROM generations WHERE id=? LIMIT 1 FOR UPDATE",
		id).Scan(&ownerID, &removed); err != nil {
		return err
	}
	if ownerID != userID {
		return ErrForbidden
	}
	if removed {
		return ErrWatermarkAlreadyRemoved
	}

	bal, err := r.Ledger.BalanceForUpdateTx(ctx, tx, userID)
	if err != nil {
		return err
	}
	if bal < 1 {
		return ErrInsufficientTokens
	}
	if err := r.Ledger.DebitTx(ctx, tx, userID, ReasonWatermarkRemoval, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE generations SET watermark_removed=1 WHERE id=?", id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
