package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/michaelbrown/parley/internal/config"
	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/llm"
	"github.com/michaelbrown/parley/internal/storage"
	"github.com/michaelbrown/parley/internal/storage/jsonfile"
	"github.com/michaelbrown/parley/internal/storage/sqlite"
)

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "", "json":
		return jsonfile.Open(cfg.Storage.Dir)
	case "sqlite":
		return sqlite.Open(cfg.Storage.DBPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildPanel turns the configured models into clients and seats them per
// stage. The --roster flag overrides the roster from the config file.
func buildPanel(cfg *config.Config) (debate.Panel, error) {
	descs, err := cfg.Descriptors()
	if err != nil {
		return debate.Panel{}, err
	}

	clients := make([]llm.Client, 0, len(descs))
	for _, d := range descs {
		clients = append(clients, llm.NewClient(d))
	}

	roster := &cfg.Panel
	if rosterFlag != "" {
		roster, err = debate.LoadRoster(rosterFlag)
		if err != nil {
			return debate.Panel{}, err
		}
	}

	return debate.BuildPanel(clients, roster)
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
