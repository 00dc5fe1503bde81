// Package config reads and writes the mediakeep TOML configuration. Every
// component receives its settings through a constructor; nothing in here is
// consulted as a module-level default.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full mediakeep configuration.
type Config struct {
	// SourceRoot is the library tree that scans, conversions, and
	// organization operate on.
	SourceRoot string `toml:"source_root"`
	// DestRoot is where converted JPEGs land. It may equal SourceRoot for
	// in-place libraries.
	DestRoot string `toml:"dest_root"`
	// ArchiveRoot receives archived originals after reconciliation.
	ArchiveRoot string `toml:"archive_root"`

	// HomeDir holds run state: reports, the tracking file, the run lock.
	HomeDir string `toml:"home_dir"`
	LogDir  string `toml:"log_dir"`

	// Excluded lists path components hidden from every walk.
	Excluded []string `toml:"excluded"`

	JPEGQuality int    `toml:"jpeg_quality"`
	FFProbePath string `toml:"ffprobe_path"`

	Tracking   TrackingConfig   `toml:"tracking"`
	HashCache  HashCacheConfig  `toml:"hash_cache"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// TrackingConfig locates the reconciliation tracking file.
type TrackingConfig struct {
	Path string `toml:"path"`
}

// HashCacheConfig controls the content-hash cache used by duplicate
// detection.
type HashCacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// MirrorConfig selects an offsite mirror backend. This is a tagged union:
// Type determines which other fields are relevant. An empty Type disables
// mirroring.
type MirrorConfig struct {
	Type string `toml:"type"` // "", "memory", "filesystem", or "s3"

	// Filesystem-specific (Type == "filesystem")
	Root string `toml:"root,omitempty"`

	// S3-specific (Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3Endpoint  string `toml:"s3_endpoint,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`
}

// Enabled reports whether a mirror backend is configured.
func (m MirrorConfig) Enabled() bool { return m.Type != "" }

// EncryptionConfig holds paths to the age key pair wrapping mirror payloads.
// Both empty means mirror uploads are plaintext.
type EncryptionConfig struct {
	RecipientPath string `toml:"recipient_path"`
	IdentityPath  string `toml:"identity_path"`
}

// Enabled reports whether mirror payloads should be encrypted.
func (e EncryptionConfig) Enabled() bool { return e.RecipientPath != "" }

// NewConfig creates a Config with the standard layout under homeDir.
func NewConfig(sourceRoot, homeDir string) *Config {
	return &Config{
		SourceRoot:  sourceRoot,
		DestRoot:    sourceRoot,
		ArchiveRoot: filepath.Join(homeDir, "archive"),
		HomeDir:     homeDir,
		LogDir:      filepath.Join(homeDir, "log"),
		Excluded:    []string{".dtrash"},
		JPEGQuality: 95,
		Tracking: TrackingConfig{
			Path: filepath.Join(homeDir, "reports", "conversion_tracking.json"),
		},
		HashCache: HashCacheConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, "cache", "hashes.db"),
		},
	}
}

// Validate checks the parts every operation depends on.
func (c *Config) Validate() error {
	if c.SourceRoot == "" {
		return fmt.Errorf("config: source_root is required")
	}
	if c.DestRoot == "" {
		return fmt.Errorf("config: dest_root is required")
	}
	if c.ArchiveRoot == "" {
		return fmt.Errorf("config: archive_root is required")
	}
	if c.HomeDir == "" {
		return fmt.Errorf("config: home_dir is required")
	}
	if c.Mirror.Type != "" {
		switch c.Mirror.Type {
		case "memory":
		case "filesystem":
			if c.Mirror.Root == "" {
				return fmt.Errorf("config: filesystem mirror requires root")
			}
		case "s3":
			if c.Mirror.S3Bucket == "" {
				return fmt.Errorf("config: s3 mirror requires s3_bucket")
			}
		default:
			return fmt.Errorf("config: unknown mirror type %q", c.Mirror.Type)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path. An existing file
// is never overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
