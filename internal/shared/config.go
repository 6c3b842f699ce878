package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Spotify  SpotifyConfig  `toml:"spotify"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Vision   VisionConfig   `toml:"vision"`
	Photos   PhotosConfig   `toml:"photos"`
	Jobs     JobsConfig     `toml:"jobs"`
	Secrets  SecretsConfig  `toml:"secrets"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// SpotifyConfig contains the OAuth client registration and API endpoints.
//
// discx is a public client: there is no client secret, PKCE proves possession.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id" validate:"required"`
	RedirectURI string   `toml:"redirect_uri" validate:"required,url"`
	Scopes      []string `toml:"scopes" validate:"min=1,dive,required"`
	Market      string   `toml:"market" validate:"len=2"`
	APIURL      string   `toml:"api_url" validate:"required,url"`
	AccountsURL string   `toml:"accounts_url" validate:"required,url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig is the loopback listener that receives the OAuth redirect.
type ServerConfig struct {
	Host string `toml:"host" validate:"required"`
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
}

type CatalogConfig struct {
	MusicBrainzURL string   `toml:"musicbrainz_url" validate:"required,url"`
	DiscogsURL     string   `toml:"discogs_url" validate:"required,url"`
	DiscogsToken   string   `toml:"discogs_token"`
	UserAgent      string   `toml:"user_agent" validate:"required"`
	CacheTTL       Duration `toml:"cache_ttl"`
	CacheSize      int      `toml:"cache_size" validate:"gte=0"`
}

type VisionConfig struct {
	OCRURL           string  `toml:"ocr_url" validate:"omitempty,url"`
	FeatureThreshold float64 `toml:"feature_threshold" validate:"gt=0"`
}

type PhotosConfig struct {
	Dir            string `toml:"dir"`
	MinioEndpoint  string `toml:"minio_endpoint"`
	MinioBucket    string `toml:"minio_bucket" validate:"required_with=MinioEndpoint"`
	MinioAccessKey string `toml:"minio_access_key"`
	MinioSecretKey string `toml:"minio_secret_key"`
	MinioUseSSL    bool   `toml:"minio_use_ssl"`
}

type JobsConfig struct {
	PlaylistID          string   `toml:"playlist_id"`
	Workers             int      `toml:"workers" validate:"gte=1,lte=16"`
	MaxRateLimitRetries int      `toml:"max_rate_limit_retries" validate:"gte=0"`
	ResumeInterval      Duration `toml:"resume_interval"`
}

// SecretsConfig holds the passphrase for the encrypted credential store.
type SecretsConfig struct {
	Key string `toml:"key"`
}

// Duration decodes TOML strings such as "15m" into a [time.Duration].
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes c to path as TOML, replacing any existing file.
func SaveConfig(path string, c *Config) error {
	var buf bytes.Buffer
	buf.WriteString("# discx configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// envOverrides maps environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"DISCX_SPOTIFY_CLIENT_ID": func(c *Config, v string) { c.Spotify.ClientID = v },
	"DISCX_DISCOGS_TOKEN":     func(c *Config, v string) { c.Catalog.DiscogsToken = v },
	"DISCX_SECRET_KEY":        func(c *Config, v string) { c.Secrets.Key = v },
	"DISCX_PLAYLIST_ID":       func(c *Config, v string) { c.Jobs.PlaylistID = v },
	"DISCX_OCR_URL":           func(c *Config, v string) { c.Vision.OCRURL = v },
	"DISCX_MINIO_ACCESS_KEY":  func(c *Config, v string) { c.Photos.MinioAccessKey = v },
	"DISCX_MINIO_SECRET_KEY":  func(c *Config, v string) { c.Photos.MinioSecretKey = v },
	"DISCX_LOG_LEVEL":         func(c *Config, v string) { c.Log.Level = strings.ToLower(v) },
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and applies
// DISCX_* environment variables on top of c. Variables already set in the
// process environment win over dotenv values.
func ApplyEnv(c *Config, files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	for key, apply := range envOverrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			apply(c, v)
		}
	}
	return nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
