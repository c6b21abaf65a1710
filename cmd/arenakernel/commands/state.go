package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/snapshot"
)

var stateLocation string

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Save, load or show arena snapshots",
	Long: `Snapshots map arena names to their contents. A location is a JSON file
path, a .db/.sqlite path or sqlite:// URL, or a redis:// URL. Without
--location the daemon uses state.location from its config.`,
}

var stateSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Ask the daemon to save its arenas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stateRequest(cmd, "/state/save")
	},
}

var stateLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Ask a stopped daemon kernel to restore its arenas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stateRequest(cmd, "/state/load")
	},
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a snapshot without a running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		location := stateLocation
		if location == "" {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			location = cfg.State.Location
		}

		ctx := context.Background()
		store, err := snapshot.Open(ctx, location)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load %s snapshot: %w", snapshot.Kind(location), err)
		}
		return printJSON(cmd.OutOrStdout(), snap)
	},
}

func stateRequest(cmd *cobra.Command, path string) error {
	var resp struct {
		Location string `json:"location"`
		Status   string `json:"status"`
	}
	body := map[string]string{}
	if stateLocation != "" {
		body["location"] = stateLocation
	}
	if err := newAPIClient().do("POST", path, body, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "state %s: %s\n", resp.Status, resp.Location)
	return nil
}

func init() {
	stateCmd.PersistentFlags().StringVarP(&stateLocation, "location", "l", "", "Snapshot location")
	stateCmd.AddCommand(stateSaveCmd, stateLoadCmd, stateShowCmd)
	rootCmd.AddCommand(stateCmd)
}
