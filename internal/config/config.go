// Package config loads server settings from defaults, an optional YAML file and
// the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthBaseURL = "https://photos-kodi-login.onrender.com"
	DefaultRedirectURI = "http://localhost:5000/auth/callback"
	DefaultMaxPageSize = 100

	DefaultPhotosAPIBase = "https://photoslibrary.googleapis.com/v1"

	// KeyringService is the keyring service name holding the client secret,
	// keyed by client id.
	KeyringService = "photo-slideshow"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// DefaultScopes are requested for every account.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/photoslibrary.readonly",
	"email",
	"openid",
}

// Slideshow holds the defaults served to the browser player.
type Slideshow struct {
	Speed      int    `yaml:"speed" json:"speed"`
	Transition string `yaml:"transition" json:"transition"`
	Shuffle    bool   `yaml:"shuffle" json:"shuffle"`
	Repeat     bool   `yaml:"repeat" json:"repeat"`
	ShowInfo   bool   `yaml:"show_info" json:"showInfo"`
}

// RateLimit bounds API requests per client IP.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthBaseURL  string   `yaml:"auth_base_url"`
	RefreshURL   string   `yaml:"refresh_url"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes"`
	MaxPageSize  int      `yaml:"max_page_size"`

	PhotosAPIBase string `yaml:"photos_api_base"`

	DataDir string `yaml:"data_dir"`
	Store   string `yaml:"store"`
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	LogFile string `yaml:"log_file"`

	// AdminPassword, when set, puts /api and /metrics behind basic auth.
	AdminPassword string `yaml:"admin_password"`

	UseKeyring bool      `yaml:"use_keyring"`
	Slideshow  Slideshow `yaml:"slideshow"`
	RateLimit  RateLimit `yaml:"rate_limit"`

	// Path is the file the config was read from, empty when none was found.
	Path string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AuthBaseURL: DefaultAuthBaseURL,
		RedirectURI: DefaultRedirectURI,
		Scopes:      append([]string(nil), DefaultScopes...),
		MaxPageSize: DefaultMaxPageSize,

		PhotosAPIBase: DefaultPhotosAPIBase,

		DataDir: "data",
		Store:   StoreFile,
		Host:    "127.0.0.1",
		Port:    "5000",
		Slideshow: Slideshow{
			Speed:      5,
			Transition: "fade",
			Repeat:     true,
			ShowInfo:   true,
		},
		RateLimit: RateLimit{PerSecond: 10, Burst: 20},
	}
}

// Load builds the configuration. An explicit path must exist; otherwise the
// usual locations are checked and a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if resolved != "" {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", resolved, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", resolved, err)
		}
		cfg.Path = resolved
	}

	cfg.applyEnv()
	cfg.normalize()

	if cfg.UseKeyring && cfg.ClientSecret == "" && cfg.ClientID != "" {
		secret, err := keyring.Get(KeyringService, cfg.ClientID)
		switch {
		case err == nil:
			cfg.ClientSecret = secret
		case errors.Is(err, keyring.ErrNotFound):
			log.Printf("⚠️ No client secret in keyring for %s", cfg.ClientID)
		default:
			log.Printf("⚠️ Keyring lookup failed: %v", err)
		}
	}

	return cfg, nil
}

// HasClientCredentials reports whether the device-code path through the shared
// auth server can be used.
func (c *Config) HasClientCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TokensDir is where per-account credential files live.
func (c *Config) TokensDir() string {
	return filepath.Join(c.DataDir, "tokens")
}

// DatabasePath is the SQLite file used by the sqlite store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "slideshow.db")
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// EffectiveRefreshURL is the token endpoint used for refresh-token exchanges.
func (c *Config) EffectiveRefreshURL() string {
	if c.RefreshURL != "" {
		return c.RefreshURL
	}
	return joinURL(c.AuthBaseURL, "refresh")
}

// StoreSecret saves the client secret in the OS keyring.
func StoreSecret(clientID, secret string) error {
	if clientID == "" {
		return fmt.Errorf("client id is required")
	}
	return keyring.Set(KeyringService, clientID, secret)
}

func (c *Config) applyEnv() {
	setString(&c.ClientID, "GOOGLE_CLIENT_ID")
	setString(&c.ClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.AuthBaseURL, "AUTH_BASE_URL")
	setString(&c.RefreshURL, "REFRESH_URL")
	setString(&c.RedirectURI, "REDIRECT_URI")
	setString(&c.PhotosAPIBase, "PHOTOS_API_BASE")
	setString(&c.DataDir, "SLIDESHOW_DATA_DIR")
	setString(&c.Store, "SLIDESHOW_STORE")
	setString(&c.Host, "HOST")
	setString(&c.Port, "PORT")
	setString(&c.LogFile, "SLIDESHOW_LOG_FILE")
	setString(&c.AdminPassword, "SLIDESHOW_ADMIN_PASSWORD")

	if v := strings.TrimSpace(os.Getenv("SLIDESHOW_SCOPES")); v != "" {
		c.Scopes = strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	if v := strings.TrimSpace(os.Getenv("SLIDESHOW_MAX_PAGE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxPageSize = n
		} else {
			log.Printf("⚠️ Ignoring SLIDESHOW_MAX_PAGE_SIZE=%q: %v", v, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv("SLIDESHOW_USE_KEYRING")); v != "" {
		c.UseKeyring = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) normalize() {
	c.ClientID = strings.TrimSpace(c.ClientID)
	c.ClientSecret = strings.TrimSpace(c.ClientSecret)
	if c.MaxPageSize <= 0 || c.MaxPageSize > DefaultMaxPageSize {
		c.MaxPageSize = DefaultMaxPageSize
	}
	if len(c.Scopes) == 0 {
		c.Scopes = append([]string(nil), DefaultScopes...)
	}
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store != StoreSQLite {
		c.Store = StoreFile
	}
	if c.AuthBaseURL == "" {
		c.AuthBaseURL = DefaultAuthBaseURL
	}
	if c.PhotosAPIBase == "" {
		c.PhotosAPIBase = DefaultPhotosAPIBase
	}
}

func resolvePath(explicit string) (string, error) {
	if explicit == "" {
		explicit = strings.TrimSpace(os.Getenv("SLIDESHOW_CONFIG"))
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{"config/slideshow.yaml"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", "slideshow", "slideshow.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

func joinURL(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed = append(trimmed, strings.Trim(p, "/"))
	}
	return strings.Join(trimmed, "/")
}
