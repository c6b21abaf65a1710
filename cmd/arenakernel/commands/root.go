// Package commands holds the arenakernel cobra command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/config"
)

const (
	envAPIURL = "ARENAKERNEL_API_URL"
	envAPIKey = "ARENAKERNEL_API_KEY"
)

var (
	configPath string
	apiURL     string
	apiKey     string
)

var rootCmd = &cobra.Command{
	Use:   "arenakernel",
	Short: "Speculative task kernel with named arenas",
	Long: `arenakernel runs submitted tasks on a pool of workers, one per arena.
Each arena is a private key/value store that can be snapshotted to a JSON
file, a SQLite database or Redis, and restored on the next start.

Run "arenakernel start" for the daemon. The other commands talk to a
running daemon over its HTTP API or read its state and journal directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command against os.Args.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file or directory (default: discovered)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr(envAPIURL, "http://127.0.0.1:8080"), "Daemon API URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv(envAPIKey), "API bearer token")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig resolves --config, falling back to discovery.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("discover config: %w", err)
		}
		path = discovered
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}
