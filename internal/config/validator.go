package config

import (
	"fmt"
	"net/url"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal base_url is required")
	}
	if _, err := url.ParseRequestURI(c.Portal.BaseURL); err != nil {
		return fmt.Errorf("portal base_url is not a valid URL: %w", err)
	}
	if c.Portal.LoginURL == "" {
		return fmt.Errorf("portal login_url is required")
	}
	if _, err := url.ParseRequestURI(c.Portal.LoginURL); err != nil {
		return fmt.Errorf("portal login_url is not a valid URL: %w", err)
	}

	if c.Credentials.Username == "" {
		return fmt.Errorf("portal username is required: set SIGAA_USERNAME or credentials.username")
	}
	if c.Credentials.Password == "" {
		return fmt.Errorf("portal password is required: set SIGAA_PASSWORD or credentials.password")
	}

	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid AI provider %q (must be: openai, anthropic)", c.AI.Provider)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI api_key is required for provider %s", c.AI.Provider)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport %q (must be: stdio, http)", c.Server.Transport)
	}
	if c.Server.Transport == "http" {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server port %d", c.Server.Port)
		}
	}

	if c.Dispatch.RequestTimeout <= 0 {
		return fmt.Errorf("dispatch request_timeout must be positive")
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch max_retries cannot be negative")
	}
	if c.Dispatch.PlannerMaxSteps < 1 {
		return fmt.Errorf("dispatch planner_max_steps must be at least 1")
	}

	if c.Browser.CDPPort != 0 && (c.Browser.CDPPort < 1024 || c.Browser.CDPPort > 65535) {
		return fmt.Errorf("browser cdp_port must be between 1024 and 65535, got %d", c.Browser.CDPPort)
	}

	return nil
}
