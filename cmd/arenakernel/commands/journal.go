package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/journal"
	"github.com/mattjoyce/arenakernel/internal/log"
	"github.com/mattjoyce/arenakernel/internal/storage"
)

var (
	journalLimit int
	journalJSON  bool
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Read the finished-task journal",
}

var journalTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show the most recently finished tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled {
			return fmt.Errorf("journal is disabled in config")
		}

		ctx := context.Background()
		db, err := storage.OpenSQLite(ctx, cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := journal.NewRecorder(db, "", log.Discard()).Recent(ctx, journalLimit)
		if err != nil {
			return err
		}
		if journalJSON {
			return printJSON(cmd.OutOrStdout(), entries)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "COMPLETED\tTASK\tARENA\tSTATUS\tDETAIL")
		for _, e := range entries {
			detail := string(e.Result)
			if e.Error != "" {
				detail = e.Error
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
				e.CompletedAt.Local().Format("2006-01-02 15:04:05"), e.TaskID, e.Arena, e.Status, detail)
		}
		return tw.Flush()
	},
}

func init() {
	journalTailCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Number of entries")
	journalTailCmd.Flags().BoolVar(&journalJSON, "json", false, "Output as JSON")
	journalCmd.AddCommand(journalTailCmd)
	rootCmd.AddCommand(journalCmd)
}
