package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort    = 8080
	defaultDataDir = "data"
	defaultExclude = "lost+found"

	// PasswordEnv overrides the configured WebDAV password when set.
	PasswordEnv = "DAVBACKUP_PASSWORD"
)

// Config describes a backup run: what to back up, where to and how.
type Config struct {
	SourceRoot     string        `yaml:"source_root"`
	WebDAVURL      string        `yaml:"webdav_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	KeyPath        string        `yaml:"key_path"`
	EncryptCommand []string      `yaml:"encrypt_command"`
	Exclude        string        `yaml:"exclude"`
	MaxParallel    int           `yaml:"max_parallel"`
	ProcessTimeout time.Duration `yaml:"process_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DataDir        string        `yaml:"data_dir"`
	Port           int           `yaml:"port"`
}

// Default returns a config with every optional field filled in.
// MaxParallel 0 means one worker per directory with no cap.
func Default() Config {
	return Config{
		EncryptCommand: []string{"zipenc"},
		Exclude:        defaultExclude,
		DataDir:        defaultDataDir,
		Port:           defaultPort,
	}
}

// Load reads YAML config from the provided path. A missing or empty file
// yields defaults; the result is validated either way.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) > 0 {
		if err := yaml.Unmarshal(fileData, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		cfg.Password = pw
	}
	normalize(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func normalize(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Exclude) == "" {
		cfg.Exclude = defaultExclude
	}
	if len(cfg.EncryptCommand) == 0 {
		cfg.EncryptCommand = []string{"zipenc"}
	}
	cfg.WebDAVURL = strings.TrimSpace(cfg.WebDAVURL)
	if cfg.WebDAVURL != "" && !strings.HasSuffix(cfg.WebDAVURL, "/") {
		cfg.WebDAVURL += "/"
	}
}

// Validate reports the first missing or invalid setting.
func (c Config) Validate() error {
	switch {
	case c.SourceRoot == "":
		return errors.New("source_root is required")
	case c.WebDAVURL == "":
		return errors.New("webdav_url is required")
	case c.KeyPath == "":
		return errors.New("key_path is required")
	case c.MaxParallel < 0:
		return fmt.Errorf("invalid max_parallel: %d (must be >= 0)", c.MaxParallel)
	case c.ProcessTimeout < 0 || c.RequestTimeout < 0:
		return errors.New("timeouts must not be negative")
	}
	return nil
}
