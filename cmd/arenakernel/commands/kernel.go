package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var kernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Start or stop the daemon's workers",
	Long: `Stop the workers of a running daemon without exiting it, for example to
load a snapshot, and start them again afterwards:

  arenakernel kernel stop
  arenakernel state load --location ./backup.json
  arenakernel kernel run`,
}

var kernelRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return kernelRequest(cmd, "/kernel/run")
	},
}

var kernelStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the workers after their current task",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return kernelRequest(cmd, "/kernel/stop")
	},
}

func kernelRequest(cmd *cobra.Command, path string) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := newAPIClient().do(http.MethodPost, path, nil, &resp); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "kernel %s\n", resp.Status)
	return nil
}

func init() {
	kernelCmd.AddCommand(kernelRunCmd, kernelStopCmd)
	rootCmd.AddCommand(kernelCmd)
}
