package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// DefaultPath 配置文件默认路径（相对于工作目录）
const DefaultPath = "config.yaml"

type ServerConfig struct {
	Port     string `yaml:"port"`
	SiteURL  string `yaml:"site_url"`
	SiteName string `yaml:"site_name"`
	Timezone string `yaml:"timezone"`
	Mode     string `yaml:"mode"` // gin 模式: debug / release / test
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // postgres DSN 或 SQLite 文件路径
}

type SessionConfig struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

type AdminConfig struct {
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"` // bcrypt，设置后优先使用
}

type AdviceConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Timeout  string `yaml:"timeout"`
}

type ListingConfig struct {
	RefreshInterval    string `yaml:"refresh_interval"`
	ClientPollInterval string `yaml:"client_poll_interval"`
}

type UploadConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

type CacheConfig struct {
	Size int    `yaml:"size"`
	TTL  string `yaml:"ttl"`
}

type ImportConfig struct {
	Timeout  string `yaml:"timeout"`
	MaxItems int    `yaml:"max_items"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Admin    AdminConfig    `yaml:"admin"`
	Advice   AdviceConfig   `yaml:"advice"`
	Listing  ListingConfig  `yaml:"listing"`
	Upload   UploadConfig   `yaml:"upload"`
	Cache    CacheConfig    `yaml:"cache"`
	Import   ImportConfig   `yaml:"import"`

	location *time.Location
}

// AdviceEnabled returns true when an API key is configured.
func (c *Config) AdviceEnabled() bool {
	return c.Advice.APIKey != ""
}

func (c *Config) AdviceTimeout() time.Duration {
	return parseDuration(c.Advice.Timeout, 20*time.Second)
}

func (c *Config) RefreshInterval() time.Duration {
	return parseDuration(c.Listing.RefreshInterval, 30*time.Second)
}

func (c *Config) ClientPollInterval() time.Duration {
	return parseDuration(c.Listing.ClientPollInterval, 60*time.Second)
}

func (c *Config) CacheTTL() time.Duration {
	return parseDuration(c.Cache.TTL, 10*time.Minute)
}

func (c *Config) ImportTimeout() time.Duration {
	return parseDuration(c.Import.Timeout, 30*time.Second)
}

// Location 编辑器中 datetime-local 输入按此时区解析
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load 读取配置，优先级：内置默认值 < YAML 文件 < 环境变量（含 .env）
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("LUMINA_CONFIG")
	}
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// 没有配置文件时使用默认值
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.SiteURL, "SITE_URL")
	setString(&cfg.Server.Timezone, "TZ_NAME")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	setString(&cfg.Admin.PasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.Advice.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Advice.Model, "GEMINI_MODEL")
	setString(&cfg.Advice.Endpoint, "GEMINI_ENDPOINT")
	setString(&cfg.Listing.RefreshInterval, "LISTING_REFRESH_INTERVAL")

	if v := os.Getenv("MAX_IMAGE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Upload.MaxImageBytes = n
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric, got %q", cfg.Server.Port)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Admin.Password == "" && cfg.Admin.PasswordHash == "" {
		return fmt.Errorf("admin.password or admin.password_hash is required")
	}
	if cfg.Server.Mode == "release" && cfg.Session.Secret == "" {
		return fmt.Errorf("session.secret is required in release mode")
	}

	durations := map[string]string{
		"advice.timeout":               cfg.Advice.Timeout,
		"listing.refresh_interval":     cfg.Listing.RefreshInterval,
		"listing.client_poll_interval": cfg.Listing.ClientPollInterval,
		"cache.ttl":                    cfg.Cache.TTL,
		"import.timeout":               cfg.Import.Timeout,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("%s: invalid duration %q", name, v)
		}
	}

	if cfg.Advice.Endpoint != "" {
		u, err := url.Parse(cfg.Advice.Endpoint)
		if err != nil {
			return fmt.Errorf("advice.endpoint: invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("advice.endpoint: scheme must be http or https, got %q", u.Scheme)
		}
	}

	if cfg.Upload.MaxImageBytes <= 0 {
		return fmt.Errorf("upload.max_image_bytes must be positive")
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 500
	}
	if cfg.Import.MaxItems <= 0 {
		cfg.Import.MaxItems = 50
	}
	cfg.Server.SiteURL = strings.TrimSuffix(cfg.Server.SiteURL, "/")

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return fmt.Errorf("server.timezone: %w", err)
	}
	cfg.location = loc
	return nil
}
