package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	MinParallelism = 1
	MaxParallelism = 20
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Output      OutputConfig      `toml:"output"`
	Workers     WorkersConfig     `toml:"workers"`
	Credentials CredentialsConfig `toml:"credentials"`
	Tools       ToolsConfig       `toml:"tools"`
	Metadata    MetadataConfig    `toml:"metadata"`
	Database    DatabaseConfig    `toml:"database"`
}

// OutputConfig controls where and how finished files are written.
type OutputConfig struct {
	Root             string `toml:"root" validate:"required"`
	Quality          string `toml:"quality" validate:"required,oneof=mp3_128 mp3_256 mp3_320 ogg m4a flac"`
	FilenameTemplate string `toml:"filename_template" validate:"required"`
	TempDir          string `toml:"temp_dir" validate:"required"`
	WritePlaylist    bool   `toml:"write_playlist"`
}

// WorkersConfig sizes the worker pool.
type WorkersConfig struct {
	Parallelism  int      `toml:"parallelism" validate:"min=1,max=20"`
	PollInterval Duration `toml:"poll_interval"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify app credentials for the client credentials flow.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id" validate:"required_with=ClientSecret"`
	ClientSecret string `toml:"client_secret" validate:"required_with=ClientID"`
}

// YouTubeConfig contains the optional YouTube Data API key used for search.
type YouTubeConfig struct {
	APIKey string `toml:"api_key"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	FFmpeg string `toml:"ffmpeg" validate:"required"`
	YTDLP  string `toml:"ytdlp" validate:"required"`
}

// MetadataConfig controls MusicBrainz enrichment.
type MetadataConfig struct {
	Enrich            bool    `toml:"enrich"`
	UserAgent         string  `toml:"user_agent" validate:"required"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// Duration is a [time.Duration] written as a string ("2s") in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// HasSpotify reports whether Spotify credentials are present.
func (c *Config) HasSpotify() bool {
	return c.Credentials.Spotify.ClientID != "" && c.Credentials.Spotify.ClientSecret != ""
}

// Validate checks field constraints and wraps failures in [ErrInvalidConfig].
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msg := fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
				if fe.Param() != "" {
					msg += fmt.Sprintf(" (%s)", fe.Param())
				}
				msgs = append(msgs, msg)
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Workers.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: workers.poll_interval must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
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
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Save validates the config and writes it to path through a temporary file.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// Set assigns a user editable field by its dotted TOML key, then validates the result.
func (c *Config) Set(key, value string) error {
	prev := *c

	var err error
	switch key {
	case "output.root":
		c.Output.Root = value
	case "output.quality":
		c.Output.Quality = value
	case "output.filename_template":
		c.Output.FilenameTemplate = value
	case "output.temp_dir":
		c.Output.TempDir = value
	case "output.write_playlist":
		c.Output.WritePlaylist, err = strconv.ParseBool(value)
	case "workers.parallelism":
		c.Workers.Parallelism, err = strconv.Atoi(value)
	case "workers.poll_interval":
		err = c.Workers.PollInterval.UnmarshalText([]byte(value))
	case "credentials.spotify.client_id":
		c.Credentials.Spotify.ClientID = value
	case "credentials.spotify.client_secret":
		c.Credentials.Spotify.ClientSecret = value
	case "credentials.youtube.api_key":
		c.Credentials.YouTube.APIKey = value
	case "tools.ffmpeg":
		c.Tools.FFmpeg = value
	case "tools.ytdlp":
		c.Tools.YTDLP = value
	case "metadata.enrich":
		c.Metadata.Enrich, err = strconv.ParseBool(value)
	case "database.path":
		c.Database.Path = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	if err != nil {
		*c = prev
		return fmt.Errorf("%w: %s: %v", ErrInvalidArgument, key, err)
	}
	if err := c.Validate(); err != nil {
		*c = prev
		return err
	}
	return nil
}

// ClampParallelism bounds n to the supported worker count range.
func ClampParallelism(n int) int {
	return max(MinParallelism, min(MaxParallelism, n))
}
