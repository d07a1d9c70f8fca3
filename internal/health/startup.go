// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/nebula/internal/config"
	"github.com/ManuGH/nebula/internal/log"
)

// PerformStartupChecks validates the environment before channels start.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.Store.Backend == "sqlite" {
		if err := checkDataDir(logger, cfg.Store.Path); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
		tempDir := filepath.Clean(os.TempDir())
		dir := filepath.Clean(cfg.Store.Path)
		if tempDir != "." && (dir == tempDir || strings.HasPrefix(dir, tempDir+string(filepath.Separator))) {
			logger.Warn().Str("path", cfg.Store.Path).Msg("store directory is under temp; the as-run log may be lost on reboot")
		}
	} else {
		logger.Warn().Str("store_backend", cfg.Store.Backend).Msg("in-memory store; as-run history does not survive restarts and recovery has nothing to read")
	}

	if cfg.Store.Seed != "" {
		if err := checkFileReadable(cfg.Store.Seed); err != nil {
			return fmt.Errorf("rundown seed: %w", err)
		}
	}

	logger.Info().Int("channels", len(cfg.Channels)).Msg("startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("store directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
