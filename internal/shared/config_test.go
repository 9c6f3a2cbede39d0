package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Output.Quality != "mp3_320" {
			t.Errorf("expected quality mp3_320, got %s", config.Output.Quality)
		}
		if config.Output.FilenameTemplate != "$artist$ - $title$" {
			t.Errorf("unexpected filename template %q", config.Output.FilenameTemplate)
		}
		if config.Workers.Parallelism != 4 {
			t.Errorf("expected parallelism 4, got %d", config.Workers.Parallelism)
		}
		if config.Workers.PollInterval.Duration != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %v", config.Workers.PollInterval)
		}
		if config.Database.Path != "./tapedeck.db" {
			t.Errorf("expected database path ./tapedeck.db, got %s", config.Database.Path)
		}
		if config.HasSpotify() {
			t.Error("default config should not carry Spotify credentials")
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Output.Root != DefaultConfig().Output.Root {
			t.Errorf("created config root doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[output]
root = "/music"
quality = "flac"

[workers]
parallelism = 12
poll_interval = "500ms"

[credentials.spotify]
client_id = "id"
client_secret = "secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Output.Root != "/music" || config.Output.Quality != "flac" {
			t.Errorf("unexpected output section: %+v", config.Output)
		}
		if config.Workers.Parallelism != 12 {
			t.Errorf("expected parallelism 12, got %d", config.Workers.Parallelism)
		}
		if config.Workers.PollInterval.Duration != 500*time.Millisecond {
			t.Errorf("expected 500ms poll interval, got %v", config.Workers.PollInterval)
		}
		if config.Output.FilenameTemplate != "$artist$ - $title$" {
			t.Error("keys absent from the file should keep defaults")
		}
		if !config.HasSpotify() {
			t.Error("expected Spotify credentials")
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		os.WriteFile(configPath, []byte("[output\nroot="), 0644)

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "parallelism too low", mutate: func(c *Config) { c.Workers.Parallelism = 0 }},
			{name: "parallelism too high", mutate: func(c *Config) { c.Workers.Parallelism = 21 }},
			{name: "unknown quality", mutate: func(c *Config) { c.Output.Quality = "wav" }},
			{name: "empty template", mutate: func(c *Config) { c.Output.FilenameTemplate = "" }},
			{name: "half spotify credentials", mutate: func(c *Config) { c.Credentials.Spotify.ClientID = "only-id" }},
			{name: "zero poll interval", mutate: func(c *Config) { c.Workers.PollInterval.Duration = 0 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("Save And Reload", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Workers.Parallelism = 7
		config.Output.FilenameTemplate = "$track_number$. $title$"

		if err := config.Save(configPath); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("reload failed: %v", err)
		}
		if loaded.Workers.Parallelism != 7 {
			t.Errorf("expected parallelism 7, got %d", loaded.Workers.Parallelism)
		}
		if loaded.Output.FilenameTemplate != "$track_number$. $title$" {
			t.Errorf("unexpected template %q", loaded.Output.FilenameTemplate)
		}
		if loaded.Workers.PollInterval.Duration != 2*time.Second {
			t.Errorf("poll interval did not round trip: %v", loaded.Workers.PollInterval)
		}
	})

	t.Run("Save Rejects Invalid Config", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Workers.Parallelism = 50

		if err := config.Save(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if _, err := os.Stat(configPath); err == nil {
			t.Error("invalid config should not be written")
		}
	})

	t.Run("Set", func(t *testing.T) {
		config := DefaultConfig()

		if err := config.Set("workers.parallelism", "20"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Workers.Parallelism != 20 {
			t.Errorf("expected 20, got %d", config.Workers.Parallelism)
		}

		if err := config.Set("workers.parallelism", "21"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if config.Workers.Parallelism != 20 {
			t.Error("rejected value should not be kept")
		}

		if err := config.Set("workers.parallelism", "many"); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}

		if err := config.Set("output.write_playlist", "false"); err != nil || config.Output.WritePlaylist {
			t.Errorf("expected write_playlist false, err=%v", err)
		}

		if err := config.Set("server.port", "1"); !errors.Is(err, ErrUnknownConfigKey) {
			t.Errorf("expected ErrUnknownConfigKey, got %v", err)
		}
	})

	t.Run("ClampParallelism", func(t *testing.T) {
		tc := []struct{ in, want int }{{-3, 1}, {0, 1}, {1, 1}, {8, 8}, {20, 20}, {99, 20}}
		for _, tt := range tc {
			if got := ClampParallelism(tt.in); got != tt.want {
				t.Errorf("ClampParallelism(%d) = %d, want %d", tt.in, got, tt.want)
			}
		}
	})
}
