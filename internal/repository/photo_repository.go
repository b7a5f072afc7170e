package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/prankroom/prank-studio/internal/model"
)

// PhotoRepo provides access to the room_photos table.  A row links a
// stored photo object to the uploading user; the photo bytes themselves
// live in object storage under src_storage_path.
type PhotoRepo struct{ DB *sql.DB }

func NewPhotoRepo(db *sql.DB) *PhotoRepo { return &PhotoRepo{DB: db} }

// Create inserts a room photo row and returns its generated id.
func (r *PhotoRepo) Create(ctx context.Context, userID uint64, storagePath string, roomID *string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO room_photos (id, user_id, src_storage_path, room_id) VALUES (?,?,?,?)",
		id, userID, storagePath, roomID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetByID returns a room photo row by id.  sql.ErrNoRows when absent.
func (r *PhotoRepo) GetByID(ctx context.Context, id string) (model.RoomPhoto, error) {
	var (
		p      model.RoomPhoto
		roomID sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, src_storage_path, room_id, created_at FROM room_photos WHERE id=? LIMIT 1",
		id).Scan(&p.ID, &p.UserID, &p.SrcStoragePath, &roomID, &p.CreatedAt)
	if err != nil {
		return model.RoomPhoto{}, err
	}
	if roomID.Valid {
		rid := roomID.String
		p.RoomID = &rid
	}
	return p, nil
}
