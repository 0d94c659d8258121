// Package main is the entry point for the blog server.
//
// main stays minimal: load configuration, build the logger, make sure the
// data directory exists, then hand everything to internal/server.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/blog/internal/config"
	"github.com/sakif/blog/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// -config wins over CONFIG_PATH; with neither, config.yaml is read if present.
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// === 3. DATA DIRECTORY ===
	if !strings.HasPrefix(cfg.DBPath, ":memory:") {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if !cfg.GitHubEnabled() {
		logger.Info("GitHub sign-in disabled (set GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET to enable)")
	}
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, login and registration are not rate limited")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
