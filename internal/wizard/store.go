package wizard

import "sync"

// Photo is the binary payload picked in the first wizard step, whether
// from a device file, a camera capture or an example asset.
type Photo struct {
	Data        []byte
	ContentType string
}

// CharacterChoice is the character picked in step two.  The "custom"
// slug carries the user's own prompt, which must be non-empty.
type CharacterChoice struct {
	Slug         string
	CustomPrompt *string
}

// ActionChoice is the action picked in step three.
type ActionChoice struct {
	Slug string
}

// SelectionStore holds the in-progress wizard input between steps.  It
// is plain in-memory state guarded by a mutex so concurrent readers and
// writers (wizard steps, the pipeline) always see consistent values.
// Nothing is persisted; an application restart starts a fresh wizard.
type SelectionStore struct {
	mu        sync.Mutex
	photo     *Photo
	character *CharacterChoice
	action    *ActionChoice
	realism   bool
}

func NewSelectionStore() *SelectionStore { return &SelectionStore{} }

// SetPhoto stores the photo payload; nil clears it.
func (s *SelectionStore) SetPhoto(p *Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = p
}

// Photo returns the stored photo or nil.
func (s *SelectionStore) Photo() *Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo
}

// SetCharacter stores the character choice; nil clears it.
func (s *SelectionStore) SetCharacter(c *CharacterChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.character = c
}

// Character returns the stored character choice or nil.
func (s *SelectionStore) Character() *CharacterChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.character
}

// SetAction stores the action choice; nil clears it.
func (s *SelectionStore) SetAction(a *ActionChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = a
}

// Action returns the stored action choice or nil.
func (s *SelectionStore) Action() *ActionChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.action
}

// SetRealismFilter toggles the realism post-processing flag.  Off by
// default.
func (s *SelectionStore) SetRealismFilter(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realism = on
}

// RealismFilter returns the realism flag.
func (s *SelectionStore) RealismFilter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realism
}

// Reset clears the selection.  The pipeline calls it after a
// successful hand-off so one wizard run cannot leak into the next;
// restarting the wizard from the beginning should call it too.
func (s *SelectionStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photo = nil
	s.character = nil
	s.action = nil
	s.realism = false
}

// snapshot returns the whole selection under a single lock acquisition
// so the pipeline validates a consistent view.
func (s *SelectionStore) snapshot() (*Photo, *CharacterChoice, *ActionChoice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photo, s.character, s.action, s.realism
}
