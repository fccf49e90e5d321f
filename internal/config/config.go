package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	pserrors "github.com/eerkela/pinsync/internal/errors"
)

// Config holds all environment-based configuration for pinsync.
type Config struct {
	// Pinterest account credentials (always required).
	Email    string `env:"PINTEREST_EMAIL"`
	Password string `env:"PINTEREST_PASSWORD"`
	Username string `env:"PINTEREST_USERNAME"`

	// Directory that mirrors the remote collection. Must already exist;
	// a missing root is a setup error, not something to silently create
	// and fill with gigabytes of downloads.
	DownloadDir string `env:"DOWNLOAD_DIR"`

	// Optional YAML rules file controlling which boards/sections sync.
	RulesFile string `env:"SYNC_RULES"`

	// Worker pool bound for container discovery and per-container
	// downloads. Zero or negative selects a CPU-proportional default.
	Workers int `env:"SYNC_WORKERS" envDefault:"0"`

	// Watch keeps the process alive after the first pass and re-syncs
	// when local files change.
	Watch bool `env:"SYNC_WATCH" envDefault:"false"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// APIBaseURL overrides the remote API endpoint. Empty uses the
	// production endpoint; tests point this at a local server.
	APIBaseURL string `env:"PINTEREST_API_URL"`
}

// workersPerCPU sizes the default worker pool. The workload is I/O-bound,
// so the pool runs wider than the CPU count.
const workersPerCPU = 4

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU() * workersPerCPU
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Resolve DownloadDir to an absolute path at startup. Downstream code
	// derives board/section names from path components relative to the
	// root, which only works reliably with absolute paths.
	absDir, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolving download dir to absolute path: %w", err)
	}

	cfg.DownloadDir = absDir

	if cfg.RulesFile != "" {
		absRules, err := filepath.Abs(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("resolving rules file to absolute path: %w", err)
		}

		cfg.RulesFile = absRules
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Email == "" {
		return fmt.Errorf("PINTEREST_EMAIL is required")
	}

	if c.Password == "" {
		return fmt.Errorf("PINTEREST_PASSWORD is required")
	}

	if c.Username == "" {
		return fmt.Errorf("PINTEREST_USERNAME is required")
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}

	info, err := os.Stat(c.DownloadDir)
	if err != nil {
		return fmt.Errorf("DOWNLOAD_DIR %q: %w", c.DownloadDir, pserrors.ErrRootNotFound)
	}

	if !info.IsDir() {
		return fmt.Errorf("DOWNLOAD_DIR %q is not a directory", c.DownloadDir)
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
