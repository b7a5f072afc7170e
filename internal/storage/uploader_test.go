package storage

import (
	"strings"
	"testing"
)

func TestObjectKeyScopingAndUniqueness(t *testing.T) {
	k1 := ObjectKey("42", "image/jpeg")
	k2 := ObjectKey("42", "image/jpeg")

	if !strings.HasPrefix(k1, "42/") {
		t.Fatalf("key %q not scoped to the user", k1)
	}
	if !strings.HasSuffix(k1, ".jpg") {
		t.Fatalf("key %q missing extension", k1)
	}
	if k1 == k2 {
		t.Fatal("two uploads must never share a key")
	}
}

func TestExtensionFromContentType(t *testing.T) {
	cases := map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/webp": ".webp",
		"IMAGE/PNG":  ".png",
		"text/plain": ".bin",
		"":           ".bin",
	}
	for ct, want := range cases {
		if got := extensionFromContentType(ct); got != want {
			t.Errorf("extensionFromContentType(%q) = %q, want %q", ct, got, want)
		}
	}
}

func TestNewUploaderValidation(t *testing.T) {
	base := Config{
		Region: "us-east-1", AccessKey: "k", SecretKey: "s",
		Bucket: "b", PublicBaseURL: "https://cdn",
	}

	if _, err := NewUploader(base); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for name, mutate := range map[string]func(*Config){
		"missing bucket":  func(c *Config) { c.Bucket = "" },
		"missing region":  func(c *Config) { c.Region = "" },
		"missing creds":   func(c *Config) { c.AccessKey = "" },
		"missing pub url": func(c *Config) { c.PublicBaseURL = "" },
	} {
		cfg := base
		mutate(&cfg)
		if _, err := NewUploader(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPublicURL(t *testing.T) {
	u := &Uploader{cfg: Config{PublicBaseURL: "https://cdn.example/"}}
	if got := u.PublicURL("42/a.jpg"); got != "https://cdn.example/42/a.jpg" {
		t.Fatalf("PublicURL = %q", got)
	}
}
