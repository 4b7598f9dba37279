// Package config loads the TOML configuration file that drives every
// pipeline stage's on-disk layout and tuning knobs (SPEC_FULL.md §6).
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// EnvConfigPath is the environment variable consulted when no CLI path is
// given, matching this stack's existing env-override-before-default
// resolution order (internal/config.Load in the sibling go-backend service).
const EnvConfigPath = "DOX_CONFIG_PATH"

// duration mirrors the reference implementation's TOML {secs, nanos} table
// for a time.Duration field.
type duration struct {
	Secs  int64 `toml:"secs"`
	Nanos int64 `toml:"nanos"`
}

func (d duration) asDuration() time.Duration {
	return time.Duration(d.Secs)*time.Second + time.Duration(d.Nanos)
}

func durationOf(d time.Duration) duration {
	return duration{Secs: int64(d / time.Second), Nanos: int64(d % time.Second)}
}

// fileConfig is the literal TOML shape on disk.
type fileConfig struct {
	WatchedDir        string   `toml:"watched_dir"`
	ThumbnailsDir     string   `toml:"thumbnails_dir"`
	IndexDir          string   `toml:"index_dir"`
	DocsDir           string   `toml:"docs_dir"`
	NotificationsAddr string   `toml:"notifications_addr"`
	CooldownTime      duration `toml:"cooldown_time"`
	OCRLanguage       string   `toml:"ocr_language"`
	BusCapacity       int      `toml:"bus_capacity"`
	WorkerPoolSize    int      `toml:"worker_pool_size"`
}

// Config is the resolved, in-memory configuration used to wire every
// component at startup.
type Config struct {
	WatchedDir        string
	ThumbnailsDir     string
	IndexDir          string
	DocsDir           string
	NotificationsAddr string
	CooldownTime      time.Duration
	OCRLanguage       string
	BusCapacity       int
	WorkerPoolSize    int
}

// Default values for the optional fields, per SPEC_FULL.md §6.
const (
	DefaultNotificationsAddr = "0.0.0.0:8001"
	DefaultCooldownTime      = 60 * time.Second
	DefaultOCRLanguage       = "pol"
	DefaultBusCapacity       = 1024
	DefaultWorkerPoolSize    = 4
)

// ErrMissingField is returned by Load when a required TOML field is empty.
var ErrMissingField = errors.New("config: missing required field")

// ResolvePath implements the CLI-arg > DOX_CONFIG_PATH env > default-path
// resolution order.
func ResolvePath(cliPath string) (string, error) {
	if cliPath != "" {
		return cliPath, nil
	}
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		return envPath, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "dox", "dox.toml"), nil
}

// Load reads and parses the TOML file at path, applying defaults for
// optional fields and validating required ones. It also loads a sibling
// .env file (if present) for secrets that should not live in the
// checked-in-friendly TOML file (JWKS URL overrides, VAPID keys).
func Load(path string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	cfg := &Config{
		WatchedDir:        fc.WatchedDir,
		ThumbnailsDir:     fc.ThumbnailsDir,
		IndexDir:          fc.IndexDir,
		DocsDir:           fc.DocsDir,
		NotificationsAddr: fc.NotificationsAddr,
		CooldownTime:      fc.CooldownTime.asDuration(),
		OCRLanguage:       fc.OCRLanguage,
		BusCapacity:       fc.BusCapacity,
		WorkerPoolSize:    fc.WorkerPoolSize,
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.NotificationsAddr == "" {
		cfg.NotificationsAddr = DefaultNotificationsAddr
	}
	if cfg.CooldownTime == 0 {
		cfg.CooldownTime = DefaultCooldownTime
	}
	if cfg.OCRLanguage == "" {
		cfg.OCRLanguage = DefaultOCRLanguage
	}
	if cfg.BusCapacity == 0 {
		cfg.BusCapacity = DefaultBusCapacity
	}
	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = DefaultWorkerPoolSize
	}
}

func validate(cfg *Config) error {
	required := map[string]string{
		"watched_dir":    cfg.WatchedDir,
		"thumbnails_dir": cfg.ThumbnailsDir,
		"index_dir":      cfg.IndexDir,
		"docs_dir":       cfg.DocsDir,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}
	return nil
}

// Prompt interactively asks the operator for the four required directories
// and writes a fresh TOML file at path, for the first-run case where no
// config file is found yet (SPEC_FULL.md §6).
func Prompt(path string, stdin *bufio.Reader) (*Config, error) {
	ask := func(label, def string) string {
		fmt.Printf("%s [%s]: ", label, def)
		line, _ := stdin.ReadString('\n')
		line = trimNewline(line)
		if line == "" {
			return def
		}
		return line
	}

	home, _ := os.UserHomeDir()
	cfg := &Config{
		WatchedDir:        ask("Watched directory", filepath.Join(home, "dox", "watched")),
		ThumbnailsDir:     ask("Thumbnails directory", filepath.Join(home, "dox", "thumbnails")),
		IndexDir:          ask("Index directory", filepath.Join(home, "dox", "index")),
		DocsDir:           ask("Documents directory", filepath.Join(home, "dox", "docs")),
		NotificationsAddr: ask("Notifications address", DefaultNotificationsAddr),
	}
	applyDefaults(cfg)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("config: create config dir: %w", err)
	}

	fc := fileConfig{
		WatchedDir:        cfg.WatchedDir,
		ThumbnailsDir:     cfg.ThumbnailsDir,
		IndexDir:          cfg.IndexDir,
		DocsDir:           cfg.DocsDir,
		NotificationsAddr: cfg.NotificationsAddr,
		CooldownTime:      durationOf(cfg.CooldownTime),
		OCRLanguage:       cfg.OCRLanguage,
		BusCapacity:       cfg.BusCapacity,
		WorkerPoolSize:    cfg.WorkerPoolSize,
	}
	data, err := toml.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("config: marshal new config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("config: write %q: %w", path, err)
	}
	return cfg, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
