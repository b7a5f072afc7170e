package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/prankroom/prank-studio/internal/genimage"
	"github.com/prankroom/prank-studio/internal/model"
	"github.com/prankroom/prank-studio/internal/queue"
	"github.com/prankroom/prank-studio/internal/repository"
	queue_publisher "github.com/prankroom/prank-studio/internal/service"
	"github.com/prankroom/prank-studio/internal/storage"
)

// GenerationHandler owns the generation endpoints: the atomic start RPC
// (insert + token debit in one transaction), the synchronous invoke
// against the image model, the status read and the watermark-removal
// debit.  All methods assume JWT middleware ran first.
type GenerationHandler struct {
	Generations *repository.GenerationRepo
	Photos      *repository.PhotoRepo
	Uploader    *storage.Uploader
	Model       *genimage.Client
	Redis       *redis.Client // nil disables balance-cache invalidation
}

func NewGenerationHandler(g *repository.GenerationRepo, p *repository.PhotoRepo, up *storage.Uploader, m *genimage.Client, rdb *redis.Client) *GenerationHandler {
	if g == nil || p == nil || up == nil || m == nil {
		panic("nil dependency passed to NewGenerationHandler")
	}
	return &GenerationHandler{Generations: g, Photos: p, Uploader: up, Model: m, Redis: rdb}
}

type startGenerationReq struct {
	RoomPhotoID   string  `json:"room_photo_id"`
	CharacterSlug string  `json:"character_slug"`
	ActionSlug    string  `json:"action_slug"`
	CustomPrompt  *string `json:"custom_prompt"`
	RealismFilter bool    `json:"realism_filter"`
}

// Start handles POST /v1/generations.  It validates the selection,
// then runs the insert-and-debit transaction.  402 means the balance
// was zero and nothing was created or charged.
func (h *GenerationHandler) Start(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req startGenerationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req.RoomPhotoID = strings.TrimSpace(req.RoomPhotoID)
	if req.RoomPhotoID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "room_photo_id is required"})
	}
	if !model.ValidCharacter(req.CharacterSlug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown character"})
	}
	if !model.ValidAction(req.ActionSlug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
	}
	// The custom character carries the user's own prompt; it cannot be blank.
	if req.CharacterSlug == model.CharacterCustom {
		if req.CustomPrompt == nil || strings.TrimSpace(*req.CustomPrompt) == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "custom character requires a prompt"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	genID, err := h.Generations.StartTx(ctx, repository.StartParams{
		UserID:        uid,
		RoomPhotoID:   req.RoomPhotoID,
		CharacterSlug: req.CharacterSlug,
		ActionSlug:    req.ActionSlug,
		CustomPrompt:  req.CustomPrompt,
		RealismFilter: req.RealismFilter,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientTokens):
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient tokens"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room photo not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "start generation failed"})
		}
	}

	h.invalidateBalance(ctx, uid)
	return c.JSON(http.StatusCreated, echo.Map{"generation_id": genID})
}

type invokeReq struct {
	GenerationID string `json:"generation_id"`
}

// Invoke handles POST /v1/generate-image.  It drives the opaque model
// call for a PENDING generation owned by the caller, stores the preview
// URL and publishes a completion event.  The preview_url in the
// response may be null when the model accepted the job but has not
// rendered yet.
func (h *GenerationHandler) Invoke(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req invokeReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.GenerationID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "generation_id is required"})
	}

	ctx := c.Request().Context()
	gen, err := h.Generations.GetByIDForUser(ctx, strings.TrimSpace(req.GenerationID), uid)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "generation not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load generation failed"})
		}
	}

	// Re-invoking a finished generation returns the stored result
	// instead of paying for another model call.
	if gen.Status == model.GenerationCompleted {
		return c.JSON(http.StatusOK, echo.Map{
			"ok":            true,
			"generation_id": gen.ID,
			"preview_url":   gen.PreviewURL,
		})
	}

	photo, err := h.Photos.GetByID(ctx, gen.RoomPhotoID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load room photo failed"})
	}

	if err := h.Generations.MarkProcessing(ctx, gen.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update generation failed"})
	}

	result, err := h.Model.Generate(ctx, genimage.Options{
		Prompt:        genimage.BuildPrompt(gen.CharacterSlug, gen.ActionSlug, gen.CustomPrompt),
		SourceURL:     h.Uploader.PublicURL(photo.SrcStoragePath),
		RealismFilter: gen.RealismFilter,
	})
	if err != nil {
		reason := err.Error()
		if mErr := h.Generations.MarkFailed(ctx, gen.ID, reason); mErr != nil {
			c.Logger().Errorf("mark failed for generation %s: %v", gen.ID, mErr)
		}
		h.publishCompleted(gen, model.GenerationFailed, nil, &reason)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "generation failed"})
	}

	var previewURL *string
	if result.PreviewURL != "" {
		previewURL = &result.PreviewURL
	}
	if err := h.Generations.MarkCompleted(ctx, gen.ID, previewURL); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update generation failed"})
	}
	if previewURL != nil {
		h.publishCompleted(gen, model.GenerationCompleted, previewURL, nil)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"ok":            true,
		"generation_id": gen.ID,
		"preview_url":   previewURL,
	})
}

// Get handles GET /v1/generations/:id.
func (h *GenerationHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	gen, err := h.Generations.GetByIDForUser(ctx, c.Param("id"), uid)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "generation not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load generation failed"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":                gen.ID,
		"room_photo_id":     gen.RoomPhotoID,
		"character_slug":    gen.CharacterSlug,
		"action_slug":       gen.ActionSlug,
		"realism_filter":    gen.RealismFilter,
		"status":            gen.Status,
		"preview_url":       gen.PreviewURL,
		"watermark_removed": gen.WatermarkRemoved,
		"created_at":        gen.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// RemoveWatermark handles POST /v1/generations/:id/remove-watermark.
// Removal costs one token, debited atomically with the row update so
// the ledger stays the single authority on spend.
func (h *GenerationHandler) RemoveWatermark(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Generations.RemoveWatermarkTx(ctx, c.Param("id"), uid); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientTokens):
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient tokens"})
		case errors.Is(err, repository.ErrWatermarkAlreadyRemoved):
			return c.JSON(http.StatusConflict, echo.Map{"error": "watermark already removed"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "generation not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove watermark failed"})
		}
	}

	h.invalidateBalance(ctx, uid)
	return c.JSON(http.StatusOK, echo.Map{"watermark_removed": true})
}

// publishCompleted sends the completion event to the broker.  Publish
// failures are already logged by the publisher and never fail the
// request.
func (h *GenerationHandler) publishCompleted(gen model.Generation, status string, previewURL, reason *string) {
	ev := queue.GenerationCompletedEvent{
		GenerationID:  gen.ID,
		UserID:        gen.UserID,
		RoomPhotoID:   gen.RoomPhotoID,
		CharacterSlug: gen.CharacterSlug,
		ActionSlug:    gen.ActionSlug,
		RealismFilter: gen.RealismFilter,
		Status:        status,
		PreviewURL:    previewURL,
		FailureReason: reason,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = queue_publisher.PublishGenerationCompleted(ctx, ev)
}

func (h *GenerationHandler) invalidateBalance(ctx context.Context, uid uint64) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, balanceCacheKey(uid)).Err()
}
