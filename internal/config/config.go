// config loads the SIVEAL configuration from YAML and ENV with a fixed priority.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
// Sources, highest priority first:
//  1. explicit path passed to MustLoad/Load (the --config flag);
//  2. CONFIG_PATH environment variable;
//  3. ./local.yaml in the working directory;
//  4. environment variables only.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	DB        DBConfig        `yaml:"db"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Images    ImagesConfig    `yaml:"images"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Site      SiteConfig      `yaml:"site"`
	Limits    LimitsConfig    `yaml:"limits"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig holds the per-request deadline.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"15s"`
}

// HTTPConfig is the public REST server.
type HTTPConfig struct {
	Host     string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	BasePath string `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// DBConfig is the MongoDB connection.
type DBConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL" env-required:"true"`
}

// AuthConfig controls token issuing and the password/lockout policy.
type AuthConfig struct {
	JWTSecret        string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL         time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"168h"`
	Issuer           string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"siveal"`
	Audience         []string      `yaml:"audience" env:"JWT_AUDIENCE" env-separator:"," env-default:"siveal-web"`
	BcryptCost       int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
	MaxLoginAttempts int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LockDuration     time.Duration `yaml:"lock_duration" env:"LOCK_DURATION" env-default:"2h"`
}

// RedisConfig is optional. An empty URL keeps rate limiting in process memory.
type RedisConfig struct {
	URL       string `yaml:"url" env:"REDIS_URL"`
	KeyPrefix string `yaml:"key_prefix" env:"REDIS_KEY_PREFIX" env-default:"siveal:rl"`
}

// S3Config is optional. An empty endpoint disables image operations.
type S3Config struct {
	Endpoint      string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	RootUser      string        `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword  string        `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	Bucket        string        `yaml:"bucket" env:"S3_BUCKET" env-default:"siveal"`
	PresignTTL    time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" env-default:"10m"`
	PublicBaseURL string        `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// Enabled reports whether an S3 endpoint is configured.
func (s S3Config) Enabled() bool {
	return strings.TrimSpace(s.Endpoint) != ""
}

// ImagesConfig limits uploads.
type ImagesConfig struct {
	MaxSizeBytes        int64    `yaml:"max_size_bytes" env:"IMAGES_MAX_SIZE_BYTES" env-default:"10485760"`
	AllowedContentTypes []string `yaml:"allowed_content_types" env:"IMAGES_ALLOWED_CONTENT_TYPES" env-separator:"," env-default:"image/jpeg,image/png,image/gif,image/webp"`
}

// RateRule is a sliding window limit: at most Limit requests per Window.
type RateRule struct {
	Limit  int           `yaml:"limit" env:"LIMIT"`
	Window time.Duration `yaml:"window" env:"WINDOW"`
}

// RateLimitConfig keeps one rule per endpoint group.
// Zero values are replaced with defaults in validate.
type RateLimitConfig struct {
	Disabled   bool     `yaml:"disabled" env:"RATE_LIMIT_DISABLED"`
	General    RateRule `yaml:"general" env-prefix:"RATE_GENERAL_"`
	Auth       RateRule `yaml:"auth" env-prefix:"RATE_AUTH_"`
	Comment    RateRule `yaml:"comment" env-prefix:"RATE_COMMENT_"`
	Newsletter RateRule `yaml:"newsletter" env-prefix:"RATE_NEWSLETTER_"`
}

// CORSConfig is the origin allow-list. "*" allows everything.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5500,http://127.0.0.1:5500"`
}

// SiteConfig is the public frontend address used in RSS links.
type SiteConfig struct {
	BaseURL string `yaml:"base_url" env:"SITE_BASE_URL" env-default:"http://localhost:3000"`
}

// LimitsConfig bounds list endpoints.
type LimitsConfig struct {
	NewsDefault        int64 `yaml:"news_default" env:"NEWS_DEFAULT_LIMIT" env-default:"50"`
	NewsMax            int64 `yaml:"news_max" env:"NEWS_MAX_LIMIT" env-default:"100"`
	SubscribersDefault int64 `yaml:"subscribers_default" env:"SUBSCRIBERS_DEFAULT_LIMIT" env-default:"50"`
	SubscribersMax     int64 `yaml:"subscribers_max" env:"SUBSCRIBERS_MAX_LIMIT" env-default:"200"`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)

	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads the configuration with the priority described on Config.
// ENV variables are overlaid on top of the file values.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	finish := func(c *Config) (*Config, error) {
		if err := c.validate(); err != nil {
			return nil, err
		}

		return c, nil
	}

	// 1) Explicit path.
	if path != "" {
		c, err := tryRead(path)
		if err != nil {
			return nil, err
		}

		return finish(c)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		c, err := tryRead(envPath)
		if err != nil {
			return nil, err
		}

		return finish(c)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		c, err := tryRead("local.yaml")
		if err != nil {
			return nil, err
		}

		return finish(c)
	}

	// 4) ENV only.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return finish(&cfg)
}

// validate fills rule defaults and checks the values.
func (c *Config) validate() error {
	if c.DB.URL == "" {
		return fmt.Errorf("db.url is required")
	}

	if _, err := url.Parse(c.DB.URL); err != nil {
		return fmt.Errorf("db.url is invalid: %w", err)
	}

	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be in [4, 31]")
	}

	if c.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("auth.max_login_attempts must be > 0")
	}

	if c.Auth.LockDuration <= 0 {
		return fmt.Errorf("auth.lock_duration must be > 0")
	}

	c.RateLimit.General = withDefault(c.RateLimit.General, 100, 15*time.Minute)
	c.RateLimit.Auth = withDefault(c.RateLimit.Auth, 5, 15*time.Minute)
	c.RateLimit.Comment = withDefault(c.RateLimit.Comment, 3, time.Minute)
	c.RateLimit.Newsletter = withDefault(c.RateLimit.Newsletter, 5, time.Hour)

	for name, r := range map[string]RateRule{
		"general":    c.RateLimit.General,
		"auth":       c.RateLimit.Auth,
		"comment":    c.RateLimit.Comment,
		"newsletter": c.RateLimit.Newsletter,
	} {
		if r.Limit < 0 || r.Window < 0 {
			return fmt.Errorf("rate_limit.%s must not be negative", name)
		}
	}

	if c.S3.Enabled() {
		if c.S3.RootUser == "" || c.S3.RootPassword == "" {
			return fmt.Errorf("s3.root_user and s3.root_password are required when s3.endpoint is set")
		}

		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
		}
	}

	if c.S3.PresignTTL <= 0 {
		c.S3.PresignTTL = 10 * time.Minute
	}

	if c.Images.MaxSizeBytes <= 0 {
		return fmt.Errorf("images.max_size_bytes must be > 0")
	}

	if len(c.Images.AllowedContentTypes) == 0 {
		return fmt.Errorf("images.allowed_content_types must not be empty")
	}

	if c.Limits.NewsDefault <= 0 || c.Limits.NewsMax <= 0 {
		return fmt.Errorf("limits.news_default and limits.news_max must be > 0")
	}

	if c.Limits.NewsDefault > c.Limits.NewsMax {
		return fmt.Errorf("limits.news_default must be <= limits.news_max")
	}

	if c.Limits.SubscribersDefault <= 0 || c.Limits.SubscribersMax <= 0 {
		return fmt.Errorf("limits.subscribers_default and limits.subscribers_max must be > 0")
	}

	if c.Limits.SubscribersDefault > c.Limits.SubscribersMax {
		return fmt.Errorf("limits.subscribers_default must be <= limits.subscribers_max")
	}

	if c.HTTP.BasePath != "" && !strings.HasPrefix(c.HTTP.BasePath, "/") {
		return fmt.Errorf("http.base_path must start with /")
	}

	c.HTTP.BasePath = strings.TrimRight(c.HTTP.BasePath, "/")

	return nil
}

func withDefault(r RateRule, limit int, window time.Duration) RateRule {
	if r.Limit == 0 {
		r.Limit = limit
	}

	if r.Window == 0 {
		r.Window = window
	}

	return r
}
