// Package config provides configuration management for verify_split.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Version is the current version of verify_split.
// This is set at build time via ldflags.
var Version = "dev"

// Supported browser drivers.
const (
	DriverChromedp   = "chromedp"
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// Config holds all configuration options for verify_split.
type Config struct {
	// Target
	TargetURL string
	Role      string
	Name      string

	// Timing
	NavigationTimeout time.Duration
	VisibleTimeout    time.Duration
	PollInterval      time.Duration
	ScreenshotTimeout time.Duration

	// Output
	OutputDir       string
	LoginScreenshot string
	ErrorScreenshot string
	FullPage        bool
	MaxWidth        int
	CleanStale      bool
	ReportPath      string

	// Browser
	Driver          string
	Headless        bool
	ChromePath      string
	NoSandbox       bool
	WindowWidth     int
	WindowHeight    int
	InstallBrowsers bool

	// Process
	Strict  bool
	Verbose bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		// Target
		TargetURL: "http://localhost:5173",
		Role:      "button",
		Name:      "Sign In (v3)",

		// Timing
		NavigationTimeout: 30 * time.Second,
		VisibleTimeout:    10 * time.Second,
		PollInterval:      100 * time.Millisecond,
		ScreenshotTimeout: 10 * time.Second,

		// Output
		OutputDir:       ".",
		LoginScreenshot: "verification_login.png",
		ErrorScreenshot: "verification_error.png",
		FullPage:        false,
		MaxWidth:        0,
		CleanStale:      false,
		ReportPath:      "",

		// Browser
		Driver:          DriverChromedp,
		Headless:        true,
		ChromePath:      "",
		NoSandbox:       false,
		WindowWidth:     1280,
		WindowHeight:    720,
		InstallBrowsers: false,

		// Process
		Strict:  false,
		Verbose: false,
	}
}

// LoginPath returns the path of the screenshot written on success.
func (c *Config) LoginPath() string {
	return filepath.Join(c.OutputDir, c.LoginScreenshot)
}

// ErrorPath returns the path of the screenshot written on failure.
func (c *Config) ErrorPath() string {
	return filepath.Join(c.OutputDir, c.ErrorScreenshot)
}

// Validate checks the configuration for values the verifier cannot run with.
func (c *Config) Validate() error {
	if c.TargetURL == "" {
		return errors.New("target URL is required")
	}
	u, err := url.Parse(c.TargetURL)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("target URL %q has no host", c.TargetURL)
	}

	if c.Role == "" || c.Name == "" {
		return errors.New("element role and name are required")
	}

	for name, d := range map[string]time.Duration{
		"navigation timeout": c.NavigationTimeout,
		"visible timeout":    c.VisibleTimeout,
		"poll interval":      c.PollInterval,
		"screenshot timeout": c.ScreenshotTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	if c.LoginScreenshot == "" || c.ErrorScreenshot == "" {
		return errors.New("screenshot file names are required")
	}
	if c.LoginScreenshot == c.ErrorScreenshot {
		return fmt.Errorf("login and error screenshots must differ, both are %q", c.LoginScreenshot)
	}
	if c.MaxWidth < 0 {
		return fmt.Errorf("max width must not be negative, got %d", c.MaxWidth)
	}

	switch c.Driver {
	case DriverChromedp, DriverRod, DriverPlaywright:
	default:
		return fmt.Errorf("unknown driver %q (want %s, %s or %s)",
			c.Driver, DriverChromedp, DriverRod, DriverPlaywright)
	}

	return nil
}

// envBinding maps an environment variable onto a config field.
// Flag is the CLI flag that takes precedence when explicitly set.
type envBinding struct {
	Key   string
	Flag  string
	apply func(c *Config, v string) error
}

var envBindings = []envBinding{
	{"VERIFY_URL", "url", func(c *Config, v string) error { c.TargetURL = v; return nil }},
	{"VERIFY_ROLE", "role", func(c *Config, v string) error { c.Role = v; return nil }},
	{"VERIFY_NAME", "name", func(c *Config, v string) error { c.Name = v; return nil }},
	{"VERIFY_NAV_TIMEOUT", "nav-timeout", durationField(func(c *Config) *time.Duration { return &c.NavigationTimeout })},
	{"VERIFY_VISIBLE_TIMEOUT", "visible-timeout", durationField(func(c *Config) *time.Duration { return &c.VisibleTimeout })},
	{"VERIFY_POLL_INTERVAL", "poll-interval", durationField(func(c *Config) *time.Duration { return &c.PollInterval })},
	{"VERIFY_SCREENSHOT_TIMEOUT", "screenshot-timeout", durationField(func(c *Config) *time.Duration { return &c.ScreenshotTimeout })},
	{"VERIFY_OUTPUT_DIR", "output", func(c *Config, v string) error { c.OutputDir = v; return nil }},
	{"VERIFY_REPORT", "report", func(c *Config, v string) error { c.ReportPath = v; return nil }},
	{"VERIFY_DRIVER", "driver", func(c *Config, v string) error { c.Driver = v; return nil }},
	{"VERIFY_CHROME_PATH", "chrome-path", func(c *Config, v string) error { c.ChromePath = v; return nil }},
	{"VERIFY_HEADLESS", "headless", boolField(func(c *Config) *bool { return &c.Headless })},
	{"VERIFY_NO_SANDBOX", "no-sandbox", boolField(func(c *Config) *bool { return &c.NoSandbox })},
	{"VERIFY_FULL_PAGE", "full-page", boolField(func(c *Config) *bool { return &c.FullPage })},
	{"VERIFY_STRICT", "strict", boolField(func(c *Config) *bool { return &c.Strict })},
	{"VERIFY_MAX_WIDTH", "max-width", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.MaxWidth = n
		return nil
	}},
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// LoadEnv applies .env and VERIFY_* environment overrides to cfg.
// Variables whose flag is reported as changed are skipped so explicit flags win.
// A missing .env file is not an error.
func LoadEnv(cfg *Config, changed func(flag string) bool) error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return applyEnv(cfg, os.LookupEnv, changed)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool), changed func(string) bool) error {
	for _, b := range envBindings {
		v, ok := lookup(b.Key)
		if !ok || v == "" {
			continue
		}
		if changed != nil && changed(b.Flag) {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			return fmt.Errorf("invalid %s=%q: %w", b.Key, v, err)
		}
	}
	return nil
}

// EnvVar pairs an environment variable with the flag it overrides.
type EnvVar struct {
	Key  string
	Flag string
}

// EnvVars lists the supported VERIFY_* environment variables.
func EnvVars() []EnvVar {
	vars := make([]EnvVar, 0, len(envBindings))
	for _, b := range envBindings {
		vars = append(vars, EnvVar{Key: b.Key, Flag: b.Flag})
	}
	return vars
}
