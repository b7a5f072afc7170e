package wizard

import (
	"bytes"
	"testing"
)

func TestSelectionStoreStartsEmpty(t *testing.T) {
	s := NewSelectionStore()
	if s.Photo() != nil || s.Character() != nil || s.Action() != nil {
		t.Fatal("fresh store should hold no selection")
	}
	if s.RealismFilter() {
		t.Fatal("realism filter should default to off")
	}
}

func TestSelectionStoreSetAndGet(t *testing.T) {
	s := NewSelectionStore()

	s.SetPhoto(&Photo{Data: []byte{0xFF, 0xD8}, ContentType: "image/jpeg"})
	prompt := "a raccoon in a top hat"
	s.SetCharacter(&CharacterChoice{Slug: "custom", CustomPrompt: &prompt})
	s.SetAction(&ActionChoice{Slug: "cooking"})
	s.SetRealismFilter(true)

	p := s.Photo()
	if p == nil || !bytes.Equal(p.Data, []byte{0xFF, 0xD8}) || p.ContentType != "image/jpeg" {
		t.Fatalf("photo round trip failed: %+v", p)
	}
	ch := s.Character()
	if ch == nil || ch.Slug != "custom" || ch.CustomPrompt == nil || *ch.CustomPrompt != prompt {
		t.Fatalf("character round trip failed: %+v", ch)
	}
	if a := s.Action(); a == nil || a.Slug != "cooking" {
		t.Fatalf("action round trip failed: %+v", a)
	}
	if !s.RealismFilter() {
		t.Fatal("realism filter should be on")
	}
}

func TestSelectionStoreNilClears(t *testing.T) {
	s := NewSelectionStore()
	s.SetPhoto(&Photo{Data: []byte{1}})
	s.SetPhoto(nil)
	if s.Photo() != nil {
		t.Fatal("SetPhoto(nil) should clear the photo")
	}
}

func TestSelectionStoreReset(t *testing.T) {
	s := NewSelectionStore()
	s.SetPhoto(&Photo{Data: []byte{1}})
	s.SetCharacter(&CharacterChoice{Slug: "ghost"})
	s.SetAction(&ActionChoice{Slug: "sleeping"})
	s.SetRealismFilter(true)

	s.Reset()

	if s.Photo() != nil || s.Character() != nil || s.Action() != nil || s.RealismFilter() {
		t.Fatal("Reset should clear every field")
	}
}
