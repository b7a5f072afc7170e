package model

import "testing"

func TestValidCharacter(t *testing.T) {
	for _, slug := range CharacterSlugs {
		if !ValidCharacter(slug) {
			t.Errorf("ValidCharacter(%q) = false", slug)
		}
	}
	for _, slug := range []string{"", "alien", "Ghost"} {
		if ValidCharacter(slug) {
			t.Errorf("ValidCharacter(%q) = true", slug)
		}
	}
}

func TestValidAction(t *testing.T) {
	for _, slug := range ActionSlugs {
		if !ValidAction(slug) {
			t.Errorf("ValidAction(%q) = false", slug)
		}
	}
	if ValidAction("dancing") {
		t.Error(`ValidAction("dancing") = true`)
	}
}

func TestPackageByID(t *testing.T) {
	for _, p := range TokenPackages {
		got := PackageByID(p.ID)
		if got == nil || got.Tokens != p.Tokens {
			t.Errorf("PackageByID(%q) = %+v", p.ID, got)
		}
	}
	if PackageByID("nope") != nil {
		t.Error(`PackageByID("nope") should be nil`)
	}
}
