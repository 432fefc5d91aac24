// Package config loads the element manager configuration from defaults, an
// optional YAML file and ELEMENT_MANAGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"go-element-manager/internal/events"
	"go-element-manager/internal/policy"
	"go-element-manager/internal/tracing"
)

// EnvPrefix prefixes every environment override, e.g. ELEMENT_MANAGER_USE_EDITOR.
const EnvPrefix = "ELEMENT_MANAGER"

// Config is the full application configuration.
type Config struct {
	Listen string `mapstructure:"listen"`
	// UseEditor enables the rich text editor on element forms.
	UseEditor bool `mapstructure:"use_editor"`
	// ManagerURL is the base URL the manager and its assets are served under.
	ManagerURL string `mapstructure:"manager_url"`

	Store   StoreConfig    `mapstructure:"store"`
	Lexicon LexiconConfig  `mapstructure:"lexicon"`
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`

	Users   []policy.Actor `mapstructure:"users"`
	Access  []policy.Rule  `mapstructure:"access"`
	Plugins []Plugin       `mapstructure:"plugins"`
}

// Plugin is a markup listener declared in configuration. Markup may use the
// [[+id]] and [[+name]] placeholders of the chunk being edited.
type Plugin struct {
	Name     string `mapstructure:"name"`
	Event    string `mapstructure:"event"`
	Priority int    `mapstructure:"priority"`
	Markup   string `mapstructure:"markup"`
}

// StoreConfig selects the chunk store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "json" or "sqlite"
	Path   string `mapstructure:"path"`
}

// LexiconConfig configures localized strings.
type LexiconConfig struct {
	// Dir overrides the embedded topic files when set.
	Dir           string        `mapstructure:"dir"`
	DefaultLocale string        `mapstructure:"default_locale"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:     ":8081",
		UseEditor:  false,
		ManagerURL: "/manager/",
		Store: StoreConfig{
			Driver: "json",
			Path:   ".element_data",
		},
		Lexicon: LexiconConfig{
			DefaultLocale: "en-US",
			CacheTTL:      10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("use_editor", d.UseEditor)
	v.SetDefault("manager_url", d.ManagerURL)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("lexicon.dir", d.Lexicon.Dir)
	v.SetDefault("lexicon.default_locale", d.Lexicon.DefaultLocale)
	v.SetDefault("lexicon.cache_ttl", d.Lexicon.CacheTTL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads configuration into v and decodes it. An explicit path must
// exist; without one, element-manager.yaml is looked up in the working
// directory and then ~/.config/element-manager, and a missing file is fine.
func Load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("element-manager")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "element-manager"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at first use.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "json", "sqlite":
	default:
		return fmt.Errorf("store.driver must be json or sqlite, got %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if !strings.HasPrefix(c.ManagerURL, "/") || !strings.HasSuffix(c.ManagerURL, "/") {
		return fmt.Errorf("manager_url must start and end with '/', got %q", c.ManagerURL)
	}
	seen := make(map[string]struct{}, len(c.Users))
	for _, u := range c.Users {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("users: every user needs a username")
		}
		if _, dup := seen[u.Username]; dup {
			return fmt.Errorf("users: duplicate username %q", u.Username)
		}
		seen[u.Username] = struct{}{}
	}
	for _, p := range c.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("plugins: every plugin needs a name")
		}
		switch events.Name(p.Event) {
		case events.OnChunkFormPrerender, events.OnChunkFormRender, events.OnRichTextEditorInit:
		default:
			return fmt.Errorf("plugins: %s listens to unknown event %q", p.Name, p.Event)
		}
	}
	return nil
}

// Actor returns the configured user with the given username.
func (c Config) Actor(username string) (policy.Actor, bool) {
	for _, u := range c.Users {
		if u.Username == username {
			if u.ID == "" {
				u.ID = u.Username
			}
			return u, true
		}
	}
	return policy.Actor{}, false
}

// NewLogger builds the slog logger described by the log section.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
