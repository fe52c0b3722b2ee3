package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// spawnChrome launches a Chrome process for the given configuration and
// returns the CDP control URL.
func spawnChrome(cfg Config) (*launcher.Launcher, string, error) {
	if cfg.UserDataDir == "" {
		cfg.UserDataDir = filepath.Join(os.TempDir(), "sigaa-mcp-profile")
	}
	if err := os.MkdirAll(cfg.UserDataDir, 0755); err != nil {
		return nil, "", &EngineError{
			Kind:    KindDisconnected,
			Message: fmt.Sprintf("failed to create user data directory: %v", err),
		}
	}

	l := launcher.New().
		Headless(cfg.Headless).
		UserDataDir(cfg.UserDataDir)

	if cfg.CDPPort > 0 {
		l = l.RemoteDebuggingPort(cfg.CDPPort)
	}
	if cfg.NoSandbox {
		l = l.NoSandbox(true)
	}
	if cfg.ChromePath != "" {
		l = l.Bin(cfg.ChromePath)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, "", &EngineError{
			Kind:    KindDisconnected,
			Message: fmt.Sprintf("failed to launch Chrome: %v", err),
		}
	}

	return l, url, nil
}

// connectCDP connects to the Chrome DevTools Protocol endpoint.
func connectCDP(ctx context.Context, cdpURL string) (*rod.Browser, error) {
	browser := rod.New().Context(ctx).ControlURL(cdpURL)
	if err := browser.Connect(); err != nil {
		return nil, classify(err, KindDisconnected, "failed to connect to CDP at %s", cdpURL)
	}
	return browser, nil
}

// IsChromeInstalled checks whether a Chrome binary can be resolved.
func IsChromeInstalled() bool {
	_, err := launcher.NewBrowser().Get()
	return err == nil
}
