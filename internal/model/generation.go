package model

import "time"

// Generation lifecycle statuses.  A row is created PENDING by the atomic
// start transaction, flips to PROCESSING when the worker picks it up, and
// finishes COMPLETED (with a preview URL) or FAILED.
const (
	GenerationPending    = "PENDING"
	GenerationProcessing = "PROCESSING"
	GenerationCompleted  = "COMPLETED"
	GenerationFailed     = "FAILED"
)

// CharacterCustom is the slug of the free-text character choice.  Selecting
// it requires a non-empty custom prompt.
const CharacterCustom = "custom"

// CharacterSlugs enumerates the characters a user can place in their room
// photo.  The list is fixed; "custom" carries a user-written prompt.
var CharacterSlugs = []string{"homeless", "plumber", "stranger", "ghost", CharacterCustom}

// ActionSlugs enumerates what the character is doing in the composite.
var ActionSlugs = []string{"sitting", "sleeping", "standing", "cooking", "reading", "watching"}

// ValidCharacter reports whether slug names a known character.
func ValidCharacter(slug string) bool {
	for _, s := range CharacterSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// ValidAction reports whether slug names a known action.
func ValidAction(slug string) bool {
	for _, s := range ActionSlugs {
		if s == slug {
			return true
		}
	}
	return false
}

// RoomPhoto mirrors the `room_photos` table.  It links a stored photo (by
// its object-storage path) to the uploading user and optionally a room.
type RoomPhoto struct {
	ID             string    // room_photos.id (uuid)
	UserID         uint64    // room_photos.user_id
	SrcStoragePath string    // room_photos.src_storage_path
	RoomID         *string   // room_photos.room_id (nullable)
	CreatedAt      time.Time // room_photos.created_at
}

// Generation mirrors the `generations` table.  A row pairs a room photo
// with character/action choices; creating it debits exactly one token in
// the same transaction.
type Generation struct {
	ID               string     // generations.id (uuid)
	UserID           uint64     // generations.user_id
	RoomPhotoID      string     // generations.room_photo_id
	CharacterSlug    string     // generations.character_slug
	ActionSlug       string     // generations.action_slug
	CustomPrompt     *string    // generations.custom_prompt (nullable)
	RealismFilter    bool       // generations.realism_filter
	Status           string     // generations.status
	PreviewURL       *string    // generations.preview_url (nullable)
	WatermarkRemoved bool       // generations.watermark_removed
	FailureReason    *string    // generations.failure_reason (nullable)
	CreatedAt        time.Time  // generations.created_at
	CompletedAt      *time.Time // generations.completed_at (nullable)
}

// TokenPackage is a purchasable bundle of generation tokens.  Payment is a
// stub: the purchase endpoint credits the ledger directly.
type TokenPackage struct {
	ID       string `json:"id"`
	Tokens   int    `json:"tokens"`
	PriceUSD int    `json:"price_usd"`
}

// TokenPackages lists the bundles offered on the pricing page.
var TokenPackages = []TokenPackage{
	{ID: "1", Tokens: 5, PriceUSD: 2},
	{ID: "2", Tokens: 15, PriceUSD: 5},
	{ID: "3", Tokens: 50, PriceUSD: 10},
}

// PackageByID returns the package with the given id, or nil.
func PackageByID(id string) *TokenPackage {
	for i := range TokenPackages {
		if TokenPackages[i].ID == id {
			return &TokenPackages[i]
		}
	}
	return nil
}
