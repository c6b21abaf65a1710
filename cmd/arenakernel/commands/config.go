package commands

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/config"
	"github.com/mattjoyce/arenakernel/internal/snapshot"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate or lock the configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load, verify and validate the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config ok: %s\n", path)
		fmt.Fprintf(out, "  arenas:  %d\n", cfg.Kernel.Arenas)
		fmt.Fprintf(out, "  state:   %s (%s)\n", cfg.State.Location, snapshot.Kind(cfg.State.Location))
		if cfg.Journal.Enabled {
			fmt.Fprintf(out, "  journal: %s\n", cfg.Journal.Path)
		}
		if cfg.API.Enabled {
			fmt.Fprintf(out, "  api:     %s\n", cfg.API.Listen)
		}
		if cfg.Notify.Enabled {
			fmt.Fprintf(out, "  notify:  %s\n", cfg.Notify.Namespace)
		}
		return nil
	},
}

var configLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Record the BLAKE3 checksum of the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			discovered, err := config.DiscoverConfigPath()
			if err != nil {
				return err
			}
			path = discovered
		}
		manifest, err := config.Lock(path)
		if err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(manifest.Hashes)) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", manifest.Hashes[name], name)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd, configLockCmd)
	rootCmd.AddCommand(configCmd)
}
