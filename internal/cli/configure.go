package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ufpa-tools/sigaa-mcp/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write a starter config file",
	Long: `Write a config file with default values to the given path, or to
$HOME/.sigaa-mcp/config.json. Credentials and the AI key are left blank;
fill them in or supply them via SIGAA_USERNAME, SIGAA_PASSWORD and
OPENAI_API_KEY / ANTHROPIC_API_KEY.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".sigaa-mcp", "config.json")
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s, remove it first", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := config.DefaultConfig()
	if err := os.WriteFile(path, []byte(cfg.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
	return nil
}
