package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/tui/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of arenas, tasks and events",
	Long: `Open a terminal dashboard on a running daemon. It polls /healthz and
/arenas and follows /events. Press q to quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(watch.New(apiURL, apiKey))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
