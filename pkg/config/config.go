// Package config resolves farmrunner settings.
//
// Values are layered with this precedence: CLI flags > environment variables >
// config file > defaults. Flags are applied by the command package; this
// package handles the remaining layers.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/farmrunner/pkg/logging"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FARMRUNNER"

// Config is the complete service configuration.
//
// Environment keys are derived from field names, e.g. Server.RateLimit reads
// FARMRUNNER_SERVER_RATE_LIMIT and Browser.Headless reads
// FARMRUNNER_BROWSER_HEADLESS.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Game        GameConfig        `yaml:"game"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Browser     BrowserConfig     `yaml:"browser"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RateLimit caps control API requests per second per client IP. Zero
	// disables limiting.
	RateLimit float64 `yaml:"rate_limit" split_words:"true"`
}

// GameConfig describes the externally owned game pages the cycle drives.
type GameConfig struct {
	BaseURL      string `yaml:"base_url" split_words:"true"`
	LoginPath    string `yaml:"login_path" split_words:"true"`
	FarmListPath string `yaml:"farm_list_path" split_words:"true"`

	// LoginMarkers are URL fragments that indicate a successful login.
	LoginMarkers []string `yaml:"login_markers" split_words:"true"`

	// ButtonText is matched against div text content first; ButtonSelector is
	// the structural fallback.
	ButtonText     string `yaml:"button_text" split_words:"true"`
	ButtonSelector string `yaml:"button_selector" split_words:"true"`
}

// ScheduleConfig bounds the randomized delay between cycles.
type ScheduleConfig struct {
	MinDelay time.Duration `yaml:"min_delay" split_words:"true"`
	MaxDelay time.Duration `yaml:"max_delay" split_words:"true"`
}

// BrowserConfig configures the Playwright-driven browser.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless"`
	InstallBrowsers   bool          `yaml:"install_browsers" split_words:"true"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" split_words:"true"`
	SettleDelay       time.Duration `yaml:"settle_delay" split_words:"true"`
	UserAgent         string        `yaml:"user_agent" split_words:"true"`
	ViewportWidth     int           `yaml:"viewport_width" split_words:"true"`
	ViewportHeight    int           `yaml:"viewport_height" split_words:"true"`
	Args              []string      `yaml:"args"`
}

// CredentialsConfig locates the credentials file.
type CredentialsConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default values
const (
	defaultHost         = "0.0.0.0"
	defaultPort         = 3000
	defaultRateLimit    = 5
	defaultBaseURL      = "https://ts100.x10.america.travian.com"
	defaultLoginPath    = "/login.php"
	defaultFarmListPath = "/build.php?gid=16&tt=99"
	defaultButtonText   = "Iniciar todas as listas de farms"
	defaultButtonSel    = "div.startAllFarmLists"
	defaultMinDelay     = 4 * time.Minute
	defaultMaxDelay     = 6 * time.Minute
	defaultNavTimeout   = 90 * time.Second
	defaultSettleDelay  = 5 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	defaultViewportW    = 1280
	defaultViewportH    = 800
	defaultCredsPath    = "credentials.json"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      defaultHost,
			Port:      defaultPort,
			RateLimit: defaultRateLimit,
		},
		Game: GameConfig{
			BaseURL:        defaultBaseURL,
			LoginPath:      defaultLoginPath,
			FarmListPath:   defaultFarmListPath,
			LoginMarkers:   []string{"dorf1.php", "dorf2.php"},
			ButtonText:     defaultButtonText,
			ButtonSelector: defaultButtonSel,
		},
		Schedule: ScheduleConfig{
			MinDelay: defaultMinDelay,
			MaxDelay: defaultMaxDelay,
		},
		Browser: BrowserConfig{
			Headless:          true,
			InstallBrowsers:   true,
			NavigationTimeout: defaultNavTimeout,
			SettleDelay:       defaultSettleDelay,
			UserAgent:         defaultUserAgent,
			ViewportWidth:     defaultViewportW,
			ViewportHeight:    defaultViewportH,
			// Container hosts typically lack a usable sandbox and /dev/shm.
			Args: []string{
				"--disable-dev-shm-usage",
				"--disable-setuid-sandbox",
				"--no-sandbox",
				"--disable-gpu",
			},
		},
		Credentials: CredentialsConfig{
			Path: defaultCredsPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds a configuration from defaults, an optional YAML file and the
// environment. A missing file at path is only an error when required is true.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if !required && errors.Is(err, os.ErrNotExist) {
				// fall through to env
			} else {
				return nil, err
			}
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment. Variables
// already set are kept. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto c. The bare PORT variable used
// by most hosting platforms is honoured, with FARMRUNNER_SERVER_PORT taking
// precedence over it.
func (c *Config) ApplyEnv() error {
	var platform struct {
		Port int `envconfig:"PORT"`
	}
	if err := envconfig.Process("", &platform); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	if platform.Port != 0 {
		c.Server.Port = platform.Port
	}

	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("invalid environment configuration: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}

	u, err := url.Parse(c.Game.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("game base_url must be an absolute URL, got %q", c.Game.BaseURL)
	}
	if len(c.Game.LoginMarkers) == 0 {
		return fmt.Errorf("at least one login marker is required")
	}
	if c.Game.ButtonText == "" && c.Game.ButtonSelector == "" {
		return fmt.Errorf("button_text or button_selector is required")
	}

	if c.Schedule.MinDelay <= 0 {
		return fmt.Errorf("min_delay must be positive")
	}
	if c.Schedule.MaxDelay < c.Schedule.MinDelay {
		return fmt.Errorf("max_delay (%v) must not be less than min_delay (%v)", c.Schedule.MaxDelay, c.Schedule.MinDelay)
	}

	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("settle_delay cannot be negative")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}

	if c.Credentials.Path == "" {
		return fmt.Errorf("credentials path is required")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// Addr returns the listen address of the control surface.
func (c *Config) Addr() string {
	return c.Server.Addr()
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoginURL returns the absolute login page address.
func (g GameConfig) LoginURL() string {
	return joinURL(g.BaseURL, g.LoginPath)
}

// FarmListURL returns the absolute farm-list page address.
func (g GameConfig) FarmListURL() string {
	return joinURL(g.BaseURL, g.FarmListPath)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
