package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file and environment.
// Environment variables use the SIGAA prefix, e.g. SIGAA_CREDENTIALS_USERNAME.
// The original deployment's SIGAA_USERNAME / SIGAA_PASSWORD names are also
// honored so existing .env files keep working.
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".sigaa-mcp", "config.json")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("SIGAA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".sigaa-mcp")
	}

	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "sigaa-mcp.log")
	}

	if cfg.Downloads.Dir == "" {
		cfg.Downloads.Dir = filepath.Join(cfg.DataDir, "downloads")
	}

	if cfg.Browser.UserDataDir == "" {
		cfg.Browser.UserDataDir = filepath.Join(cfg.DataDir, "chrome-profile")
	}

	return cfg, nil
}

// applyEnvOverrides maps the flat legacy environment variables onto the
// structured config.
func applyEnvOverrides(cfg *Config) {
	if u := os.Getenv("SIGAA_USERNAME"); u != "" {
		cfg.Credentials.Username = u
	}
	if p := os.Getenv("SIGAA_PASSWORD"); p != "" {
		cfg.Credentials.Password = p
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" && cfg.AI.APIKey == "" {
		cfg.AI.APIKey = k
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" && cfg.AI.APIKey == "" {
		cfg.AI.APIKey = k
		cfg.AI.Provider = "anthropic"
	}
	if t := os.Getenv("MCP_TRANSPORT"); t != "" {
		cfg.Server.Transport = t
	}
	if d := os.Getenv("DOWNLOAD_PATH"); d != "" {
		cfg.Downloads.Dir = d
	}
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sigaa-mcp", "config.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
