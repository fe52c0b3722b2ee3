package config

import (
	"encoding/json"
	"time"
)

// Config represents the main sigaa-mcp configuration
type Config struct {
	// Portal holds the target portal endpoints
	Portal PortalConfig `json:"portal" mapstructure:"portal"`

	// Credentials for the single portal account
	Credentials CredentialsConfig `json:"credentials" mapstructure:"credentials"`

	// AI holds planner provider configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Browser holds Chrome launch configuration
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Server holds MCP transport configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Dispatch holds timeout and retry configuration
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Downloads holds artifact storage configuration
	Downloads DownloadsConfig `json:"downloads" mapstructure:"downloads"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// PortalConfig holds the portal URLs and login behavior
type PortalConfig struct {
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	LoginURL string `json:"login_url" mapstructure:"login_url"`
}

// CredentialsConfig holds the portal account credentials.
// Values are read-only at runtime and excluded from String().
type CredentialsConfig struct {
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
}

// AIConfig holds planner provider configuration
type AIConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// BrowserConfig holds Chrome launch configuration
type BrowserConfig struct {
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath  string `json:"chrome_path" mapstructure:"chrome_path"`
	UserDataDir string `json:"user_data_dir" mapstructure:"user_data_dir"`
	CDPPort     int    `json:"cdp_port" mapstructure:"cdp_port"`
}

// ServerConfig holds MCP transport configuration
type ServerConfig struct {
	Transport string `json:"transport" mapstructure:"transport"` // stdio, http
	Host      string `json:"host" mapstructure:"host"`
	Port      int    `json:"port" mapstructure:"port"`
}

// DispatchConfig holds the dispatcher's timeout and retry envelope
type DispatchConfig struct {
	RequestTimeout  time.Duration `json:"request_timeout" mapstructure:"request_timeout"`
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	RetryBackoff    time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`
	ProbeInterval   time.Duration `json:"probe_interval" mapstructure:"probe_interval"`
	PlannerMaxSteps int           `json:"planner_max_steps" mapstructure:"planner_max_steps"`
}

// DownloadsConfig holds artifact storage configuration
type DownloadsConfig struct {
	Dir             string        `json:"dir" mapstructure:"dir"`
	CompleteTimeout time.Duration `json:"complete_timeout" mapstructure:"complete_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:  "https://sigaa.ufpa.br",
			LoginURL: "https://sigaa.ufpa.br/sigaa/verTelaLogin.do",
		},
		AI: AIConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Browser: BrowserConfig{
			Headless: true,
			CDPPort:  9222,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Host:      "0.0.0.0",
			Port:      8000,
		},
		Dispatch: DispatchConfig{
			RequestTimeout:  3 * time.Minute,
			MaxRetries:      2,
			RetryBackoff:    time.Second,
			ProbeInterval:   5 * time.Minute,
			PlannerMaxSteps: 20,
		},
		Downloads: DownloadsConfig{
			CompleteTimeout: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := *c
	if masked.Credentials.Password != "" {
		masked.Credentials.Password = "****"
	}
	if masked.AI.APIKey != "" {
		masked.AI.APIKey = "****"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}
