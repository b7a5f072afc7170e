package genimage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBuildPrompt(t *testing.T) {
	custom := "a raccoon in a top hat"
	blank := "   "
	cases := []struct {
		name      string
		character string
		action    string
		prompt    *string
		want      string
	}{
		{"fixed character", "ghost", "sitting", nil,
			"a ghost sitting on the furniture in this room, photorealistic, matching the room's lighting"},
		{"custom prompt wins", "custom", "cooking", &custom,
			"a a raccoon in a top hat cooking in this room, photorealistic, matching the room's lighting"},
		{"blank prompt falls back to slug", "ghost", "sleeping", &blank,
			"a ghost sleeping in this room, photorealistic, matching the room's lighting"},
		{"unknown action passes through", "plumber", "juggling", nil,
			"a plumber juggling in this room, photorealistic, matching the room's lighting"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BuildPrompt(tc.character, tc.action, tc.prompt); got != tc.want {
				t.Errorf("BuildPrompt = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/composite" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("auth header = %q", got)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["prompt"] == "" || body["image_url"] == "" {
			t.Errorf("body = %v", body)
		}
		json.NewEncoder(w).Encode(map[string]string{"preview_url": "https://cdn/p.png"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-123", time.Second, nil)
	res, err := c.Generate(context.Background(), Options{
		Prompt:    "a ghost sitting",
		SourceURL: "https://cdn/src.jpg",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.PreviewURL != "https://cdn/p.png" {
		t.Fatalf("preview = %q", res.PreviewURL)
	}
}

func TestGenerateEmptyPreviewIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"preview_url": ""})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second, nil)
	res, err := c.Generate(context.Background(), Options{Prompt: "p", SourceURL: "s"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.PreviewURL != "" {
		t.Fatalf("preview = %q, want empty (still rendering)", res.PreviewURL)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", time.Second, nil)
	_, err := c.Generate(context.Background(), Options{Prompt: "p", SourceURL: "s"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status in message", err)
	}
}

func TestGenerateValidation(t *testing.T) {
	c := NewClient("http://unused", "k", time.Second, nil)
	if _, err := c.Generate(context.Background(), Options{SourceURL: "s"}); err == nil {
		t.Fatal("empty prompt should error")
	}
	if _, err := c.Generate(context.Background(), Options{Prompt: "p"}); err == nil {
		t.Fatal("empty source url should error")
	}
}
