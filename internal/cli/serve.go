package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ufpa-tools/sigaa-mcp/internal/actor"
	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/browser"
	"github.com/ufpa-tools/sigaa-mcp/internal/config"
	"github.com/ufpa-tools/sigaa-mcp/internal/dispatch"
	"github.com/ufpa-tools/sigaa-mcp/internal/keepalive"
	"github.com/ufpa-tools/sigaa-mcp/internal/logger"
	"github.com/ufpa-tools/sigaa-mcp/internal/observability"
	"github.com/ufpa-tools/sigaa-mcp/internal/planner"
	"github.com/ufpa-tools/sigaa-mcp/internal/registry"
	"github.com/ufpa-tools/sigaa-mcp/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server on the configured transport (stdio or HTTP).
On stdio, all logging goes to stderr and the log file; stdout carries the
protocol.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Server.Transport != "stdio",
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	if err := observability.InitAuditLogger(filepath.Join(cfg.DataDir, "audit.log")); err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	store, err := artifacts.NewStore(filepath.Join(cfg.DataDir, "artifacts"))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Downloads.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	if cfg.Browser.ChromePath == "" && !browser.IsChromeInstalled() {
		log.Warn().Msg("No Chrome binary found, one will be downloaded on first launch")
	}

	engine := browser.New(browser.Config{
		Headless:    cfg.Browser.Headless,
		NoSandbox:   cfg.Browser.NoSandbox,
		ChromePath:  cfg.Browser.ChromePath,
		UserDataDir: cfg.Browser.UserDataDir,
		CDPPort:     cfg.Browser.CDPPort,
		DownloadDir: cfg.Downloads.Dir,
	})

	provider, err := planner.NewProvider(cfg.AI.Provider, cfg.AI.APIKey)
	if err != nil {
		return err
	}
	taskPlanner := planner.New(provider, cfg.AI.Model, cfg.Dispatch.PlannerMaxSteps)

	sessionActor := actor.New(actor.Config{
		BaseURL:  cfg.Portal.BaseURL,
		LoginURL: cfg.Portal.LoginURL,
		Username: cfg.Credentials.Username,
		Password: cfg.Credentials.Password,
	}, engine, taskPlanner, store, cfg.Downloads.Dir, cfg.Downloads.CompleteTimeout)

	reg := registry.New()
	if err := registry.RegisterAll(reg, sessionActor); err != nil {
		return err
	}

	dispatcher := dispatch.New(reg, sessionActor, dispatch.Options{
		RequestTimeout: cfg.Dispatch.RequestTimeout,
		MaxRetries:     cfg.Dispatch.MaxRetries,
		RetryBackoff:   cfg.Dispatch.RetryBackoff,
	})
	probe := keepalive.New(cfg.Dispatch.ProbeInterval, func(ctx context.Context) error {
		return dispatcher.RunExclusive(ctx, "keepalive-probe", sessionActor.Probe)
	})
	if err := probe.Start(); err != nil {
		dispatcher.Close()
		return err
	}

	// Shutdown: drain in-flight work before touching the session, then
	// close the browser and drop downloaded documents
	defer func() {
		probe.Stop()
		dispatcher.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sessionActor.Logout(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Logout during shutdown failed")
		}
		store.Purge()
	}()

	mcpServer := server.New("sigaa-mcp", version, reg, dispatcher)

	log.Info().
		Str("transport", cfg.Server.Transport).
		Int("tools", len(reg.List())).
		Msg("sigaa-mcp starting")

	if cfg.Server.Transport == "http" {
		errCh := make(chan error, 1)
		go func() {
			errCh <- mcpServer.ServeHTTP(cfg.Server.Host, cfg.Server.Port)
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("Shutting down")
			return nil
		}
	}
	return mcpServer.ServeStdio()
}
