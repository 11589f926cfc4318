// ABOUTME: Entry point for the mediflow CLI
// ABOUTME: Wires the cobra command tree, .env loading, and signal handling

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
                    _ _  __ _
  _ __ ___   ___  __| (_)/ _| | _____      __
 | '_ ' _ \ / _ \/ _' | | |_| |/ _ \ \ /\ / /
 | | | | | |  __/ (_| | |  _| | (_) \ V  V /
 |_| |_| |_|\___|\__,_|_|_| |_|\___/ \_/\_/
`

// getConfigPath returns the path to the config file.
// Priority: --config flag > MEDIFLOW_CONFIG env var > XDG_CONFIG_HOME/mediflow/config.yaml > ~/.config/mediflow/config.yaml
func getConfigPath(flag string) (path string, explicit bool) {
	if flag != "" {
		return flag, true
	}
	if envPath := os.Getenv("MEDIFLOW_CONFIG"); envPath != "" {
		return envPath, true
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml", false
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "mediflow", "config.yaml"), false
}

// getDataPath returns the path to the mediflow data directory.
// Priority: XDG_DATA_HOME/mediflow > ~/.local/share/mediflow
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "mediflow")
}

func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "mediflow",
		Short:         "Medical study assistant with step-by-step clinical flowcharts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "path to config file (.yaml or .toml)")

	configPath := func() (string, bool) { return getConfigPath(configFlag) }

	root.AddCommand(
		newServeCmd(configPath),
		newChatCmd(configPath),
		newTokenCmd(configPath),
		newDiagramCmd(),
	)
	return root
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
