package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/doclens-dev/doclens/internal/cli/config"
	"github.com/doclens-dev/doclens/internal/cli/ui"
)

var historyLimit int

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <repository>",
		Short: "Show past scans of a repository",
		Long:  "List the recorded scan runs of one repository from the local state database, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	stateStore, err := openState(cfg.Scan.StatePath)
	if err != nil {
		return err
	}
	defer stateStore.Close()

	runs, err := stateStore.History(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No recorded scans for %s\n", args[0])
		return nil
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	table := ui.NewTable(cmd.OutOrStdout(), []string{
		"STARTED", "TYPE", "STATUS", "COMMIT", "DURATION", "SCAN ID",
	}, &ui.TableOptions{NoColor: noColor})
	for _, run := range runs {
		commit := run.CommitSHA
		if len(commit) > 10 {
			commit = commit[:10]
		}
		table.AddRow(
			run.StartedAt.Local().Format(time.RFC3339),
			run.ScanType,
			run.Status,
			commit,
			run.Duration.Round(time.Millisecond).String(),
			run.ScanID,
		)
	}
	table.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s runs shown\n", strconv.Itoa(len(runs)))
	return nil
}
