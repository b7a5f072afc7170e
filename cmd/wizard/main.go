// Command wizard drives the generation pipeline from a terminal: sign
// in (or register), pick a room photo, character and action, and run
// the five-stage flow against a prank-studio server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/prankroom/prank-studio/internal/apiclient"
	"github.com/prankroom/prank-studio/internal/wizard"
	"github.com/prankroom/prank-studio/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	var (
		server    = flag.String("server", envOr("WIZARD_SERVER", "http://localhost:8080"), "prank-studio server base URL")
		email     = flag.String("email", os.Getenv("WIZARD_EMAIL"), "account email")
		password  = flag.String("password", os.Getenv("WIZARD_PASSWORD"), "account password")
		register  = flag.Bool("register", false, "create the account instead of signing in")
		photoPath = flag.String("photo", "", "path to the room photo")
		character = flag.String("character", "", "character slug (see -list)")
		prompt    = flag.String("prompt", "", "custom prompt, required when -character=custom")
		action    = flag.String("action", "", "action slug (see -list)")
		realism   = flag.Bool("realism", false, "apply the realism filter")
		buy       = flag.String("buy", "", "purchase a token package before generating")
		list      = flag.Bool("list", false, "list characters and actions, then exit")
		timeout   = flag.Duration("timeout", 2*time.Minute, "per-stage timeout")
	)
	flag.Parse()

	logr := logger.New()
	client := apiclient.New(*server, 30*time.Second, logr)
	ctx := context.Background()

	if *list {
		chars, err := client.Characters(ctx)
		if err != nil {
			log.Fatalf("list characters: %v", err)
		}
		actions, err := client.Actions(ctx)
		if err != nil {
			log.Fatalf("list actions: %v", err)
		}
		fmt.Println("characters:", chars)
		fmt.Println("actions:   ", actions)
		return
	}

	if *email == "" || *password == "" {
		log.Fatal("email and password are required (flags or WIZARD_EMAIL/WIZARD_PASSWORD)")
	}

	session := wizard.NewSessionClient(client, client, logr)
	session.Start(ctx)
	defer session.Close()

	if *register {
		if err := client.SignUp(ctx, *email, *password); err != nil {
			log.Fatalf("register: %v", err)
		}
	} else {
		if err := client.SignIn(ctx, *email, *password); err != nil {
			log.Fatalf("sign in: %v", err)
		}
	}
	fmt.Printf("signed in, balance: %d tokens\n", session.Balance())

	if *buy != "" {
		bal, err := client.Purchase(ctx, *buy)
		if err != nil {
			log.Fatalf("purchase: %v", err)
		}
		if _, err := session.RefreshBalance(ctx); err != nil {
			logr.Warn("balance refresh after purchase failed", "error", err)
		}
		fmt.Printf("purchased package %s, balance: %d tokens\n", *buy, bal)
	}

	if *photoPath == "" || *character == "" || *action == "" {
		log.Fatal("-photo, -character and -action are required to generate")
	}

	data, err := os.ReadFile(*photoPath)
	if err != nil {
		log.Fatalf("read photo: %v", err)
	}

	store := wizard.NewSelectionStore()
	store.SetPhoto(&wizard.Photo{Data: data, ContentType: http.DetectContentType(data)})
	choice := &wizard.CharacterChoice{Slug: *character}
	if *prompt != "" {
		choice.CustomPrompt = prompt
	}
	store.SetCharacter(choice)
	store.SetAction(&wizard.ActionChoice{Slug: *action})
	store.SetRealismFilter(*realism)

	orch := wizard.NewOrchestrator(store, session, client, client, client, *timeout, logr)
	res, err := orch.Run(ctx)
	if err != nil {
		switch {
		case wizard.IsKind(err, wizard.KindNotAuthenticated):
			log.Fatal("not signed in; run with -register to create an account")
		case wizard.IsKind(err, wizard.KindIncompleteSelection):
			log.Fatalf("selection incomplete: %v", err)
		default:
			if res != nil && res.GenerationID != "" {
				log.Fatalf("generation %s created but invocation failed: %v", res.GenerationID, err)
			}
			log.Fatalf("generation failed: %v", err)
		}
	}

	fmt.Printf("generation %s created (photo record %s)\n", res.GenerationID, res.RoomPhotoID)
	if res.PreviewURL != nil {
		fmt.Println("preview:", *res.PreviewURL)
	} else {
		fmt.Println("preview not ready yet; poll the generation for the URL")
	}
	fmt.Printf("balance: %d tokens\n", session.Balance())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
