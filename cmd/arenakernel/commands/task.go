package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/arenakernel/internal/task"
	"github.com/mattjoyce/arenakernel/internal/work"
)

var (
	submitKwargs []string
	submitWait   time.Duration
)

var submitCmd = &cobra.Command{
	Use:   "submit <command> [args...]",
	Short: "Submit a task to the running daemon",
	Long: `Submit a registered command as a task.

Each argument is parsed as JSON when it is valid JSON, otherwise it is sent
as a string. Keyword arguments use --kw key=value with the same rule.

Examples:
  arenakernel submit square 7
  arenakernel submit scratch --kw key=note --kw value='"hello"'
  arenakernel submit sleep 2 --wait 5s`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Inspect tasks",
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a task by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id < 0 {
			return fmt.Errorf("task id must be a non-negative integer: %q", args[0])
		}
		var v task.View
		if err := newAPIClient().do("GET", fmt.Sprintf("/tasks/%d", id), nil, &v); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	},
}

func init() {
	submitCmd.Flags().StringArrayVar(&submitKwargs, "kw", nil, "Keyword argument key=value (repeatable)")
	submitCmd.Flags().DurationVar(&submitWait, "wait", 0, "Poll until the task finishes, up to this long")
	taskCmd.AddCommand(taskGetCmd)
	rootCmd.AddCommand(submitCmd, taskCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req := work.Command{Name: args[0]}
	for _, raw := range args[1:] {
		req.Args = append(req.Args, parseValue(raw))
	}
	if len(submitKwargs) > 0 {
		req.Kwargs = make(map[string]any, len(submitKwargs))
		for _, kv := range submitKwargs {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return fmt.Errorf("invalid --kw %q, expected key=value", kv)
			}
			req.Kwargs[key] = parseValue(value)
		}
	}

	client := newAPIClient()
	var resp struct {
		TaskID int64 `json:"task_id"`
	}
	if err := client.do("POST", "/tasks", req, &resp); err != nil {
		return err
	}
	if submitWait <= 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "submitted task %d\n", resp.TaskID)
		return nil
	}

	deadline := time.Now().Add(submitWait)
	for {
		var v task.View
		if err := client.do("GET", fmt.Sprintf("/tasks/%d", resp.TaskID), nil, &v); err != nil {
			return err
		}
		if v.Status.Terminal() {
			return printJSON(cmd.OutOrStdout(), v)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("task %d still %s after %s", resp.TaskID, v.Status, submitWait)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// parseValue decodes raw as JSON, falling back to the literal string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
