package cli

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sandeepkv93/taskcal/internal/config"
	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/storage"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

// runtime holds everything a command needs, built from the config file and
// the environment.
type runtime struct {
	cfg     config.Config
	loc     *time.Location
	client  *taskapi.HTTPClient
	cache   *storage.SQLiteRepository
	logFile *os.File
}

func loadConfig(path string) (config.Config, error) {
	base, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	cfg := config.FromEnv(*base)
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openRuntime(opts *rootOptions, withCache bool) (*runtime, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, loc: loc}
	if err := rt.openLog(); err != nil {
		return nil, err
	}

	rt.client, err = taskapi.NewHTTPClient(taskapi.Options{
		BaseURL:    cfg.BaseURL,
		Routes:     cfg.Routes,
		CSRFHeader: cfg.CSRFHeader,
		CSRFToken:  func() string { return cfg.CSRFToken },
		Timeout:    cfg.RequestTimeout(),
		Location:   loc,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	if withCache && cfg.CachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.CachePath), 0o700); err != nil {
			rt.Close()
			return nil, err
		}
		rt.cache, err = storage.OpenSQLite(cfg.CachePath)
		if err != nil {
			// The calendar still works without its offline copy.
			appLog.Error("cache unavailable", err, "path", cfg.CachePath)
			rt.cache = nil
		}
	}
	return rt, nil
}

// openLog sends diagnostics to the configured file so they never land on
// the terminal the TUI draws to.
func (rt *runtime) openLog() error {
	if level, ok := appLog.ParseLevel(rt.cfg.LogLevel); ok {
		appLog.SetLevel(level)
	}
	if rt.cfg.LogFile == "" {
		appLog.SetOutput(io.Discard)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(rt.cfg.LogFile), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(rt.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	rt.logFile = f
	appLog.SetOutput(f)
	return nil
}

// repository returns the cache as an interface value, nil when disabled.
func (rt *runtime) repository() storage.Repository {
	if rt.cache == nil {
		return nil
	}
	return rt.cache
}

func (rt *runtime) Close() error {
	var errs []error
	if rt.cache != nil {
		errs = append(errs, rt.cache.Close())
	}
	if rt.logFile != nil {
		appLog.SetOutput(io.Discard)
		errs = append(errs, rt.logFile.Close())
	}
	return errors.Join(errs...)
}
