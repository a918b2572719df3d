// Package config loads the client configuration from a YAML file and lets
// TASKCAL_* environment variables override it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

const (
	defaultTimezone       = "UTC"
	defaultRefresh        = "*/15 * * * *"
	defaultCSRFHeader     = "X-CSRFToken"
	defaultTimeoutSeconds = 15
	defaultTimerBuffer    = 64
	defaultLogLevel       = "info"
)

type Config struct {
	// BaseURL is the root of the task API, e.g. "https://tasks.example.com/api".
	BaseURL string `yaml:"base_url"`

	// CSRFHeader and CSRFToken form the anti-forgery header sent on every
	// mutating request.
	CSRFHeader string `yaml:"csrf_header"`
	CSRFToken  string `yaml:"csrf_token"`

	// Timezone is the IANA zone used to read timestamps without an offset
	// and to lay out the calendar.
	Timezone string `yaml:"timezone"`

	// RefreshCron schedules full reloads of the task list. "off" disables
	// periodic reloads.
	RefreshCron string `yaml:"refresh"`

	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// CachePath is the SQLite file holding the offline snapshot. Empty
	// disables the cache.
	CachePath string `yaml:"cache_path"`

	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`

	// TimerBuffer sizes the deadline wake-up channel.
	TimerBuffer int `yaml:"timer_buffer"`

	// DesktopNotifications raises an OS notification when a task turns
	// overdue while the calendar is open.
	DesktopNotifications bool `yaml:"desktop_notifications"`

	Routes taskapi.Routes `yaml:"routes"`
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:               "http://127.0.0.1:8000",
		CSRFHeader:            defaultCSRFHeader,
		Timezone:              defaultTimezone,
		RefreshCron:           defaultRefresh,
		RequestTimeoutSeconds: defaultTimeoutSeconds,
		CachePath:             filepath.Join(defaultDir(), "cache.db"),
		LogFile:               filepath.Join(defaultDir(), "taskcal.log"),
		LogLevel:              defaultLogLevel,
		TimerBuffer:           defaultTimerBuffer,
		Routes:                taskapi.DefaultRoutes(),
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

func defaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".taskcal"
	}
	return filepath.Join(dir, "taskcal")
}

// Normalize fills zero values so older or partial files still work.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	if strings.TrimSpace(c.CSRFHeader) == "" {
		c.CSRFHeader = defaultCSRFHeader
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = defaultTimezone
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = defaultTimeoutSeconds
	}
	if c.TimerBuffer <= 0 {
		c.TimerBuffer = defaultTimerBuffer
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = defaultLogLevel
	}
	def := taskapi.DefaultRoutes()
	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&c.Routes.List, def.List)
	fill(&c.Routes.Create, def.Create)
	fill(&c.Routes.Edit, def.Edit)
	fill(&c.Routes.Move, def.Move)
	fill(&c.Routes.Resize, def.Resize)
	fill(&c.Routes.Duplicate, def.Duplicate)
	fill(&c.Routes.Delete, def.Delete)
}

// Validate reports settings that would make the client unusable.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("config: base_url is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if !c.RefreshDisabled() {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
		}
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) RefreshDisabled() bool {
	return strings.EqualFold(strings.TrimSpace(c.RefreshCron), "off")
}

// Load reads path. A missing file is created with defaults on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".taskcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// FromEnv returns a copy of base with TASKCAL_* overrides applied.
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := getEnvString("TASKCAL_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := getEnvString("TASKCAL_CSRF_TOKEN"); ok {
		cfg.CSRFToken = v
	}
	if v, ok := getEnvString("TASKCAL_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("TASKCAL_REFRESH"); ok {
		cfg.RefreshCron = v
	}
	if v, ok := getEnvString("TASKCAL_CACHE_PATH"); ok {
		cfg.CachePath = v
	}
	if v, ok := getEnvString("TASKCAL_LOG_FILE"); ok {
		cfg.LogFile = v
	}
	if v, ok := getEnvInt("TASKCAL_REQUEST_TIMEOUT_SECONDS"); ok && v > 0 {
		cfg.RequestTimeoutSeconds = v
	}
	if v, ok := getEnvString("TASKCAL_DESKTOP_NOTIFICATIONS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DesktopNotifications = b
		}
	}
	return cfg
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", false
	}
	return raw, true
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnvString(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
