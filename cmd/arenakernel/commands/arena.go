package commands

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/kernel"
)

var arenaJSON bool

var arenaCmd = &cobra.Command{
	Use:   "arena",
	Short: "Inspect and reset arenas",
}

var arenaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List arenas with their keys and occupancy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Arenas []kernel.ArenaView `json:"arenas"`
		}
		if err := newAPIClient().do("GET", "/arenas", nil, &resp); err != nil {
			return err
		}
		if arenaJSON {
			return printJSON(cmd.OutOrStdout(), resp.Arenas)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tNAME\tSTATE\tTASK\tKEYS")
		for _, a := range resp.Arenas {
			state, current := "idle", "-"
			if a.Busy {
				state = "busy"
			}
			if a.CurrentTask != nil {
				current = strconv.FormatInt(*a.CurrentTask, 10)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", a.Index, a.Name, state, current, len(a.Keys))
		}
		return tw.Flush()
	},
}

var arenaResetCmd = &cobra.Command{
	Use:   "reset <index>",
	Short: "Clear an arena after a failed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("arena index must be an integer: %q", args[0])
		}
		if err := newAPIClient().do("POST", fmt.Sprintf("/arenas/%d/reset", index), nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "arena %d reset\n", index)
		return nil
	},
}

func init() {
	arenaListCmd.Flags().BoolVar(&arenaJSON, "json", false, "Output as JSON")
	arenaCmd.AddCommand(arenaListCmd, arenaResetCmd)
	rootCmd.AddCommand(arenaCmd)
}
