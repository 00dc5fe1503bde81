package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the filesystem locations a run needs before any config is read.
type Paths struct {
	// ConfigPath is the mediakeep.toml location.
	ConfigPath string
	// BaseDir is the root for run state: tracking, cache, logs, reports.
	BaseDir string
	// LogDir is where run logs are written, always BaseDir/log.
	LogDir string
}

// DefaultPaths resolves the standard locations, honoring two environment
// overrides:
//   - MEDIAKEEP_CONFIG_PATH: config file location (default: ~/.config/mediakeep.toml)
//   - MEDIAKEEP_HOME: base directory for run state (default: ~/.local/share/mediakeep)
func DefaultPaths() (Paths, error) {
	p := Paths{
		ConfigPath: os.Getenv("MEDIAKEEP_CONFIG_PATH"),
		BaseDir:    os.Getenv("MEDIAKEEP_HOME"),
	}

	if p.ConfigPath == "" || p.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if p.ConfigPath == "" {
			p.ConfigPath = filepath.Join(home, ".config", "mediakeep.toml")
		}
		if p.BaseDir == "" {
			p.BaseDir = filepath.Join(home, ".local", "share", "mediakeep")
		}
	}

	p.LogDir = filepath.Join(p.BaseDir, "log")
	return p, nil
}
