package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prankroom/prank-studio/internal/wizard"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer emulates the slice of the /v1 API the client touches.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeAuth := func(w http.ResponseWriter, status int) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"user":    map[string]any{"id": 42, "email": "u@e.x"},
			"access":  map[string]any{"token": "access-tok", "expires": time.Now().Add(time.Hour)},
			"refresh": map[string]any{"token": "refresh-tok", "expires": time.Now().Add(24 * time.Hour)},
		})
	}

	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeAuth(w, http.StatusOK)
	})
	mux.HandleFunc("/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		writeAuth(w, http.StatusCreated)
	})
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	requireBearer := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") != "Bearer access-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return false
		}
		return true
	}

	mux.HandleFunc("/v1/tokens/balance", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		json.NewEncoder(w).Encode(map[string]int{"balance": 7})
	})
	mux.HandleFunc("/v1/room-photos/upload", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		if r.Header.Get("Content-Type") != "image/jpeg" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"storage_path": "42/key.jpg"})
	})
	mux.HandleFunc("/v1/room-photos", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		var body struct {
			SrcStoragePath string `json:"src_storage_path"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.SrcStoragePath != "42/key.jpg" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "src_storage_path is required"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "photo-1"})
	})
	mux.HandleFunc("/v1/generations", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		var body struct {
			RoomPhotoID string `json:"room_photo_id"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.RoomPhotoID == "broke" {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]string{"error": "insufficient tokens"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"generation_id": "gen-1"})
	})
	mux.HandleFunc("/v1/generate-image", func(w http.ResponseWriter, r *http.Request) {
		if !requireBearer(w, r) {
			return
		}
		preview := "https://cdn.example/p.png"
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true, "generation_id": "gen-1", "preview_url": preview,
		})
	})
	mux.HandleFunc("/v1/catalog/characters", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]string{"characters": {"ghost", "custom"}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func signedInClient(t *testing.T) *Client {
	t.Helper()
	srv := testServer(t)
	c := New(srv.URL, 5*time.Second, quietLogger())
	if err := c.SignIn(context.Background(), "u@e.x", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	return c
}

func TestSignInAdoptsSessionAndNotifies(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL, 5*time.Second, quietLogger())

	var events []wizard.SessionChange
	unsub := c.SubscribeSessionChanges(func(ch wizard.SessionChange) {
		events = append(events, ch)
	})
	defer unsub()

	if err := c.SignIn(context.Background(), "u@e.x", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	sess, err := c.CurrentSession(context.Background())
	if err != nil || sess == nil {
		t.Fatalf("CurrentSession = (%+v, %v)", sess, err)
	}
	if sess.UserID != 42 || sess.AccessToken != "access-tok" {
		t.Fatalf("session = %+v", sess)
	}
	if len(events) != 1 || events[0].Event != wizard.EventSignedIn {
		t.Fatalf("events = %+v, want one signed_in", events)
	}

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if sess, _ := c.CurrentSession(context.Background()); sess != nil {
		t.Fatalf("session after sign-out = %+v, want nil", sess)
	}
	if len(events) != 2 || events[1].Event != wizard.EventSignedOut {
		t.Fatalf("events = %+v, want signed_in then signed_out", events)
	}
}

func TestPipelineCollaborators(t *testing.T) {
	c := signedInClient(t)
	ctx := context.Background()

	path, err := c.UploadRoomPhoto(ctx, wizard.Photo{Data: []byte{0xFF, 0xD8}, ContentType: "image/jpeg"})
	if err != nil || path != "42/key.jpg" {
		t.Fatalf("UploadRoomPhoto = (%q, %v)", path, err)
	}

	photoID, err := c.InsertRoomPhoto(ctx, path)
	if err != nil || photoID != "photo-1" {
		t.Fatalf("InsertRoomPhoto = (%q, %v)", photoID, err)
	}

	genID, err := c.StartGeneration(ctx, wizard.StartGenerationParams{
		RoomPhotoID: photoID, CharacterSlug: "ghost", ActionSlug: "sitting",
	})
	if err != nil || genID != "gen-1" {
		t.Fatalf("StartGeneration = (%q, %v)", genID, err)
	}

	inv, err := c.InvokeGeneration(ctx, genID, "access-tok")
	if err != nil {
		t.Fatalf("InvokeGeneration: %v", err)
	}
	if inv.PreviewURL == nil || *inv.PreviewURL != "https://cdn.example/p.png" {
		t.Fatalf("preview = %v", inv.PreviewURL)
	}

	bal, err := c.TokenBalance(ctx)
	if err != nil || bal != 7 {
		t.Fatalf("TokenBalance = (%d, %v)", bal, err)
	}
}

func TestStartGenerationInsufficientTokens(t *testing.T) {
	c := signedInClient(t)

	_, err := c.StartGeneration(context.Background(), wizard.StartGenerationParams{
		RoomPhotoID: "broke", CharacterSlug: "ghost", ActionSlug: "sitting",
	})
	if err == nil || err.Error() != "insufficient tokens (status 402)" {
		t.Fatalf("err = %v, want the server's 402 message", err)
	}
}

func TestUnauthenticatedCallsAreAuthErrors(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL, 5*time.Second, quietLogger())

	_, err := c.TokenBalance(context.Background())
	if !wizard.IsKind(err, wizard.KindAuth) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestTransportFailuresAreNetworkErrors(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL, 5*time.Second, quietLogger())
	if err := c.SignIn(context.Background(), "u@e.x", "pw"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	srv.Close()

	_, err := c.TokenBalance(context.Background())
	if !wizard.IsKind(err, wizard.KindNetwork) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

func TestCatalog(t *testing.T) {
	srv := testServer(t)
	c := New(srv.URL, 5*time.Second, quietLogger())

	chars, err := c.Characters(context.Background())
	if err != nil || len(chars) != 2 || chars[0] != "ghost" {
		t.Fatalf("Characters = (%v, %v)", chars, err)
	}
}
