package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Category tags events whose CATEGORIES property is missing or unknown.
	Category string `yaml:"category" json:"category"`
}

// CalDAVConfig points at one calendar collection on a CalDAV server.
type CalDAVConfig struct {
	URL      string `yaml:"url" json:"url"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
	// Calendar is the collection path, e.g. "/calendars/coach/agenda/".
	Calendar string `yaml:"calendar" json:"calendar"`
	Category string `yaml:"category" json:"category"`
}

// EventConfig is a statically configured schedule entry. Start and End are
// RFC3339 timestamps; a missing End means a one-hour session.
type EventConfig struct {
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Title    string `yaml:"title" json:"title"`
	Category string `yaml:"category" json:"category"`
	Start    string `yaml:"start" json:"start"`
	End      string `yaml:"end,omitempty" json:"end,omitempty"`
	Subject  string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Notes    string `yaml:"notes,omitempty" json:"notes,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
// Password may be plaintext or an "$argon2id$..." hash.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// SnapshotConfig controls the headless PNG capture of the month page.
type SnapshotConfig struct {
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
	Output string `yaml:"output" json:"output"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone whose midnights delimit grid days.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the lowercase English weekday that opens each grid row.
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for reloading event sources.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	ICS    []ICSConfig   `yaml:"ics" json:"ics"`
	CalDAV *CalDAVConfig `yaml:"caldav,omitempty" json:"caldav,omitempty"`
	Events []EventConfig `yaml:"events" json:"events"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "America/Sao_Paulo"
	defaultWeekStart   = "sunday"
	defaultRefreshCron = "*/15 * * * *"
	defaultLogLevel    = "info"
	defaultCacheDir    = "./cache/ics"
	defaultSnapWidth   = 1280
	defaultSnapHeight  = 960
	defaultSnapOutput  = "./cache/calendar.png"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   defaultWeekStart,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		CacheDir:    defaultCacheDir,
		ICS:         []ICSConfig{},
		Events:      []EventConfig{},
		Snapshot: SnapshotConfig{
			Width:  defaultSnapWidth,
			Height: defaultSnapHeight,
			Output: defaultSnapOutput,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if _, ok := weekdayNames[c.WeekStart]; !ok {
		// Unknown value; fall back to sunday to avoid surprising layouts.
		c.WeekStart = defaultWeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
	if c.Snapshot.Width <= 0 {
		c.Snapshot.Width = defaultSnapWidth
	}
	if c.Snapshot.Height <= 0 {
		c.Snapshot.Height = defaultSnapHeight
	}
	if c.Snapshot.Output == "" {
		c.Snapshot.Output = defaultSnapOutput
	}
}

// WeekStartDay maps WeekStart to a weekday, defaulting to Sunday.
func (c *Config) WeekStartDay() time.Weekday {
	if wd, ok := weekdayNames[strings.ToLower(c.WeekStart)]; ok {
		return wd
	}
	return time.Sunday
}

// Location loads Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
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

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
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

	tmp, err := os.CreateTemp(dir, ".fitcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
