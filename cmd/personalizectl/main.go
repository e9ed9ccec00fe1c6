package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/benvon/smart-health/cmd/personalizectl/commands"
	"github.com/benvon/smart-health/internal/bootstrap"
	"github.com/benvon/smart-health/internal/config"
	"github.com/benvon/smart-health/internal/storage"
)

func main() {
	env := &commands.Env{
		Open: func(ctx context.Context) (storage.Store, string, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, "", fmt.Errorf("failed to load config: %w", err)
			}
			store, err := bootstrap.OpenStore(ctx, cfg, nil)
			if err != nil {
				return nil, "", err
			}
			return store, cfg.StoreKey, nil
		},
		Now: time.Now,
	}

	if err := commands.NewRootCmd(env).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
