// Package config reads runtime settings from the environment (and an
// optional .env file) and resolves the paths the client writes to.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const AppName = "cloudtasks"

const LogFile = "cloudtasks.log"

var ErrBackendURLRequired = errors.New("config: CLOUDTASKS_AUTH_URL is required")

type Config struct {
	AuthURL       string        `env:"CLOUDTASKS_AUTH_URL"`
	TasksURL      string        `env:"CLOUDTASKS_TASKS_URL"`
	Dir           string        `env:"CLOUDTASKS_CONFIG_DIR"`
	DBFile        string        `env:"CLOUDTASKS_DB_FILE" env-default:"state.db"`
	SessionKey    string        `env:"CLOUDTASKS_SESSION_KEY" env-default:"authTokens"`
	HTTPTimeout   time.Duration `env:"CLOUDTASKS_HTTP_TIMEOUT" env-default:"15s"`
	DefaultExpiry time.Duration `env:"CLOUDTASKS_DEFAULT_EXPIRY" env-default:"24h"`
	LogLevel      string        `env:"CLOUDTASKS_LOG_LEVEL" env-default:"info"`
	ExpiryBuffer  int           `env:"CLOUDTASKS_EXPIRY_BUFFER" env-default:"64"`
}

type Reader interface {
	Read() (*Config, error)
}

// EnvReader loads DotEnvPath (when it exists) into the process environment
// and then reads Config from it.
type EnvReader struct {
	DotEnvPath string
}

func NewEnvReader() EnvReader {
	return EnvReader{DotEnvPath: ".env"}
}

func (r EnvReader) Read() (*Config, error) {
	if r.DotEnvPath != "" {
		if err := godotenv.Load(r.DotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	cfg := new(Config)
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Load reads the configuration; a non-empty dir overrides the config
// directory from the environment.
func Load(r Reader, dir string) (*Config, error) {
	cfg, err := r.Read()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) != "" {
		cfg.Dir = dir
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.AuthURL = strings.TrimRight(strings.TrimSpace(c.AuthURL), "/")
	c.TasksURL = strings.TrimRight(strings.TrimSpace(c.TasksURL), "/")
	if c.TasksURL == "" {
		c.TasksURL = c.AuthURL
	}
	if strings.TrimSpace(c.Dir) == "" {
		c.Dir = DefaultDir()
	}
	if c.ExpiryBuffer <= 0 {
		c.ExpiryBuffer = 64
	}
	if c.DefaultExpiry <= 0 {
		c.DefaultExpiry = 24 * time.Hour
	}
}

// DefaultDir uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) DBPath() string {
	if filepath.IsAbs(c.DBFile) {
		return c.DBFile
	}
	return filepath.Join(c.Dir, c.DBFile)
}

func (c *Config) LogPath() string {
	return filepath.Join(c.Dir, LogFile)
}

func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0o700)
}

// RequireBackend reports whether the backend URLs needed for network
// operations are configured.
func (c *Config) RequireBackend() error {
	if c.AuthURL == "" {
		return ErrBackendURLRequired
	}
	return nil
}
