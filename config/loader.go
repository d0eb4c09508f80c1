package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is discovered by walking up from the working
	// directory, so a repo-level doppel.yaml applies in any subdirectory.
	ProjectConfigFile = "doppel.yaml"
	// UserConfigDir holds the per-user config under $HOME.
	UserConfigDir = ".config/doppel"
	// UserConfigFile is the file name inside UserConfigDir.
	UserConfigFile = "config.yaml"
)

// Loader assembles the effective config from three layers: built-in
// defaults, the user file, then the project file. Later layers win
// field by field.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a loader logging through logger.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load merges defaults, the user config, and the nearest project
// config, then validates the result. A missing file is not an error;
// an unreadable or invalid one is logged and skipped.
func (ld *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := ld.userFile(); path != "" {
		ld.mergeFile(cfg, path, "user")
	}
	if path := ld.projectFile(); path != "" {
		ld.mergeFile(cfg, path, "project")
	} else {
		ld.logger.Debug("No project config file in this tree")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (ld *Loader) mergeFile(cfg *Config, path, layer string) {
	layerCfg, err := LoadFromFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			ld.logger.Warn("Failed to load config layer",
				slog.String("layer", layer),
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return
	}
	ld.logger.Debug("Loaded config layer",
		slog.String("layer", layer), slog.String("path", path))
	cfg.Merge(layerCfg)
}

func (ld *Loader) userFile() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(h, UserConfigDir, UserConfigFile)
}

// projectFile walks from the working directory toward the filesystem
// root and returns the first doppel.yaml it sees.
func (ld *Loader) projectFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		up := filepath.Dir(dir)
		if up == dir {
			return ""
		}
		dir = up
	}
}
