// Package queue defines message payloads exchanged over the message broker.
package queue

// GenerationCompletedEvent is published when a generation finishes, with
// either a preview URL or a failure reason.  It contains enough
// information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type GenerationCompletedEvent struct {
	GenerationID  string  `json:"generation_id"`
	UserID        uint64  `json:"user_id"`
	RoomPhotoID   string  `json:"room_photo_id"`
	CharacterSlug string  `json:"character_slug"`
	ActionSlug    string  `json:"action_slug"`
	RealismFilter bool    `json:"realism_filter"`
	Status        string  `json:"status"`
	PreviewURL    *string `json:"preview_url,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CompletedAt   string  `json:"completed_at"`
}
