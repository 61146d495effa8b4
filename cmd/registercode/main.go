package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"donationhub/internal/bootstrap"
	"donationhub/internal/infra"
	"donationhub/internal/registry"
)

func main() {
	_ = godotenv.Load()

	var (
		usernameFlag    string
		displayNameFlag string
	)
	flag.StringVar(&usernameFlag, "username", "", "Roblox username to register")
	flag.StringVar(&displayNameFlag, "display-name", "", "optional display name to store for the username")
	flag.Parse()

	username := strings.TrimSpace(usernameFlag)
	if username == "" {
		exitWithError(errors.New("-username is required"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	if cfg.StorageDriver == infra.StorageMemory {
		exitWithError(errors.New("STORAGE_DRIVER=memory cannot be shared with the api; use sqlite or postgres"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := infra.NewLogger("cli").With().Str("cmd", "registercode").Logger()
	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		exitWithError(fmt.Errorf("failed to open store: %w", err))
	}
	defer store.Close()

	reg, err := registry.Register(ctx, store, username, registry.NewCode)
	if err != nil {
		exitWithError(fmt.Errorf("failed to register %q: %w", username, err))
	}

	if name := strings.TrimSpace(displayNameFlag); name != "" {
		if err := registry.SetDisplayName(ctx, store, reg.Identity, name); err != nil {
			exitWithError(err)
		}
		fmt.Printf("display name for %s set to %s\n", reg.Identity, name)
	}

	if reg.Created {
		fmt.Printf("registered %s with code %s\n", reg.Identity, reg.Code)
		return
	}
	fmt.Printf("%s already registered with code %s\n", reg.Identity, reg.Code)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
