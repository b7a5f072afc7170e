package wizard

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prankroom/prank-studio/internal/model"
)

// PhotoStorage uploads the room photo for the signed-in user and
// returns the storage path the service generated for it.
type PhotoStorage interface {
	UploadRoomPhoto(ctx context.Context, photo Photo) (string, error)
}

// StartGenerationParams is the validated wizard selection handed to the
// generation-start RPC.
type StartGenerationParams struct {
	RoomPhotoID   string
	CharacterSlug string
	ActionSlug    string
	CustomPrompt  *string
	RealismFilter bool
}

// RecordStore creates the room-photo record and the generation request.
// StartGeneration inserts the request and debits one token in a single
// server-side transaction; it never partially succeeds.
type RecordStore interface {
	InsertRoomPhoto(ctx context.Context, storagePath string) (string, error)
	StartGeneration(ctx context.Context, params StartGenerationParams) (string, error)
}

// InvokeResult is what the generation function reports back.
// PreviewURL is nil when the model accepted the job but has not
// rendered an image yet.
type InvokeResult struct {
	GenerationID string
	PreviewURL   *string
}

// GenerationInvoker triggers the image generation for an already
// created request, authenticated with the caller's access token.
type GenerationInvoker interface {
	InvokeGeneration(ctx context.Context, generationID, accessToken string) (*InvokeResult, error)
}

// Result is returned by Run.  On a generation-stage failure the photo
// and request identifiers are still populated so the caller can poll or
// retry the invoke without re-uploading.
type Result struct {
	GenerationID string
	RoomPhotoID  string
	StoragePath  string
	PreviewURL   *string
}

// defaultStageTimeout bounds each pipeline stage individually.  A stage
// that stalls past it fails with a classified error instead of hanging
// the wizard.
const defaultStageTimeout = 2 * time.Minute

// Orchestrator runs the generation pipeline: auth check, selection
// validation, photo upload, record creation with atomic token debit,
// and the generation invoke.  Each stage failure maps to a distinct
// PipelineError kind, and at most one run is in flight at a time.
type Orchestrator struct {
	selections *SelectionStore
	session    *SessionClient
	storage    PhotoStorage
	records    RecordStore
	invoker    GenerationInvoker
	log        *slog.Logger

	stageTimeout time.Duration
	inFlight     atomic.Bool
}

// NewOrchestrator wires the pipeline.  stageTimeout <= 0 selects the
// default.
func NewOrchestrator(selections *SelectionStore, session *SessionClient,
	storage PhotoStorage, records RecordStore, invoker GenerationInvoker,
	stageTimeout time.Duration, log *slog.Logger) *Orchestrator {

	if selections == nil || session == nil || storage == nil || records == nil || invoker == nil {
		panic("nil dependency passed to NewOrchestrator")
	}
	if stageTimeout <= 0 {
		stageTimeout = defaultStageTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		selections:   selections,
		session:      session,
		storage:      storage,
		records:      records,
		invoker:      invoker,
		stageTimeout: stageTimeout,
		log:          log,
	}
}

// Run executes the pipeline once.  Concurrent calls beyond the first
// return ErrPipelineBusy immediately.  The selection store is cleared
// only after the final stage succeeds, so any failure leaves the
// user's choices intact for a retry.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPipelineBusy
	}
	defer o.inFlight.Store(false)

	// Stage 1: live auth check against the provider, not the cache.
	sess, err := o.checkAuth(ctx)
	if err != nil {
		return nil, err
	}

	// Stage 2: validate the selection before touching any backend.
	photo, character, action, realism, err := o.validateSelection()
	if err != nil {
		return nil, err
	}

	// Stage 3: upload the room photo.
	path, err := o.uploadPhoto(ctx, *photo)
	if err != nil {
		return nil, err
	}

	// Stage 4: create the photo record, then the generation request with
	// its atomic token debit.
	photoID, err := o.createPhotoRecord(ctx, path)
	if err != nil {
		return nil, err
	}
	genID, err := o.createRequest(ctx, photoID, character, action, realism)
	if err != nil {
		return nil, err
	}

	res := &Result{GenerationID: genID, RoomPhotoID: photoID, StoragePath: path}

	// Stage 5: trigger the generation itself.  The request row already
	// exists, so hand the partial result back even on failure.
	inv, err := o.invoke(ctx, genID, sess.AccessToken)
	if err != nil {
		return res, err
	}
	res.PreviewURL = inv.PreviewURL

	o.selections.Reset()

	// Reconcile the cached balance with the server ledger; the debit
	// already happened in stage 4, so a failed refresh only delays the
	// displayed number.
	rctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	if _, err := o.session.RefreshBalance(rctx); err != nil {
		o.log.Warn("balance reconcile after generation failed", "error", err)
	}

	return res, nil
}

func (o *Orchestrator) checkAuth(ctx context.Context) (*Session, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	sess, err := o.session.CurrentSession(sctx)
	if err != nil {
		return nil, classify(KindAuth, "session check failed", err)
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, &PipelineError{Kind: KindNotAuthenticated, Message: "sign in to generate an image"}
	}
	return sess, nil
}

func (o *Orchestrator) validateSelection() (*Photo, *CharacterChoice, *ActionChoice, bool, error) {
	photo, character, action, realism := o.selections.snapshot()
	switch {
	case photo == nil || len(photo.Data) == 0:
		return nil, nil, nil, false, &PipelineError{Kind: KindIncompleteSelection, Message: "room photo is missing"}
	case character == nil:
		return nil, nil, nil, false, &PipelineError{Kind: KindIncompleteSelection, Message: "character is missing"}
	case action == nil:
		return nil, nil, nil, false, &PipelineError{Kind: KindIncompleteSelection, Message: "action is missing"}
	}
	if character.Slug == model.CharacterCustom &&
		(character.CustomPrompt == nil || strings.TrimSpace(*character.CustomPrompt) == "") {
		return nil, nil, nil, false, &PipelineError{Kind: KindIncompleteSelection, Message: "custom character requires a prompt"}
	}
	return photo, character, action, realism, nil
}

func (o *Orchestrator) uploadPhoto(ctx context.Context, photo Photo) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	path, err := o.storage.UploadRoomPhoto(sctx, photo)
	if err != nil {
		return "", classify(KindStorage, "photo upload failed", err)
	}
	return path, nil
}

func (o *Orchestrator) createPhotoRecord(ctx context.Context, storagePath string) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	id, err := o.records.InsertRoomPhoto(sctx, storagePath)
	if err != nil {
		return "", classify(KindRecordCreation, "room photo record creation failed", err)
	}
	return id, nil
}

func (o *Orchestrator) createRequest(ctx context.Context, photoID string, character *CharacterChoice, action *ActionChoice, realism bool) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	id, err := o.records.StartGeneration(sctx, StartGenerationParams{
		RoomPhotoID:   photoID,
		CharacterSlug: character.Slug,
		ActionSlug:    action.Slug,
		CustomPrompt:  character.CustomPrompt,
		RealismFilter: realism,
	})
	if err != nil {
		return "", classify(KindRequestCreation, "generation request creation failed", err)
	}
	return id, nil
}

func (o *Orchestrator) invoke(ctx context.Context, generationID, accessToken string) (*InvokeResult, error) {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	inv, err := o.invoker.InvokeGeneration(sctx, generationID, accessToken)
	if err != nil {
		return nil, classify(KindGeneration, "image generation failed", err)
	}
	return inv, nil
}
