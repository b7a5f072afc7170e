package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prankroom/prank-studio/internal/repository"
	"github.com/prankroom/prank-studio/internal/storage"
)

// maxPhotoBytes caps uploaded room photos at 10 MiB.
const maxPhotoBytes = 10 << 20

// PhotoHandler serves the two photo steps of the wizard pipeline: raw
// upload into object storage, then the room_photos record insert that
// the generation request will reference.  The steps are separate
// endpoints on purpose; a failed record insert must not orphan a debit,
// and a failed upload must not create a record.
type PhotoHandler struct {
	Uploader *storage.Uploader
	Photos   *repository.PhotoRepo
}

func NewPhotoHandler(up *storage.Uploader, photos *repository.PhotoRepo) *PhotoHandler {
	if up == nil || photos == nil {
		panic("nil dependency passed to NewPhotoHandler")
	}
	return &PhotoHandler{Uploader: up, Photos: photos}
}

// Upload handles POST /v1/room-photos/upload.  The request body is the
// raw image; Content-Type tells us the format.  The object is stored
// under a user-scoped unique key and the key is returned as the storage
// path.
func (h *PhotoHandler) Upload(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body must be an image"})
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPhotoBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}
	if len(data) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "empty body"})
	}
	if len(data) > maxPhotoBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "photo too large"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	key, err := h.Uploader.UploadRoomPhoto(ctx, strconv.FormatUint(uid, 10), data, contentType)
	if err != nil {
		c.Logger().Errorf("photo upload failed for user %d: %v", uid, err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "storage upload failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"storage_path": key})
}

// CreateRecord handles POST /v1/room-photos.  It inserts a room_photos
// row referencing an already-uploaded object and returns the record id.
func (h *PhotoHandler) CreateRecord(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var body struct {
		SrcStoragePath string  `json:"src_storage_path"`
		RoomID         *string `json:"room_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.SrcStoragePath = strings.TrimSpace(body.SrcStoragePath)
	if body.SrcStoragePath == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "src_storage_path is required"})
	}
	// The path must belong to the caller; keys are prefixed with the
	// owner's user id.
	if !strings.HasPrefix(body.SrcStoragePath, strconv.FormatUint(uid, 10)+"/") {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Photos.Create(ctx, uid, body.SrcStoragePath, body.RoomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create record failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}
