package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/manthanjain6106/crawler-service/internal/config"
	"github.com/manthanjain6106/crawler-service/internal/database"
	"github.com/manthanjain6106/crawler-service/internal/model"
	"github.com/manthanjain6106/crawler-service/internal/report"
)

// NewTasksCmd creates the tasks command with its subcommands.
func NewTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect stored crawl tasks",
		Long: `Tasks lists, shows, and deletes crawl tasks stored in the local
task database. Tasks are created by "crawlerd crawl" unless it runs
with --no-save.`,
	}

	cmd.AddCommand(newTasksListCmd())
	cmd.AddCommand(newTasksShowCmd())
	cmd.AddCommand(newTasksDeleteCmd())

	return cmd
}

// openTaskDB opens the task database in the XDG data directory. The
// database must already exist; inspecting tasks never creates one.
func openTaskDB() (*database.TaskDB, error) {
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	store, err := database.Open(config.XDGDataDir(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open task database (run a crawl first?): %w", err)
	}
	return store, nil
}

func newTasksListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored crawl tasks",
		Long: `List prints the stored crawl tasks, newest first.

Examples:
  crawlerd tasks list
  crawlerd tasks list --status failed
  crawlerd tasks list --limit 10`,
		RunE: runTasksListCmd,
	}

	cmd.Flags().StringP("status", "s", "",
		"Filter by status (pending, in_progress, completed, failed)")
	cmd.Flags().IntP("limit", "n", 0,
		"Maximum number of tasks to list (0 = all)")

	return cmd
}

func runTasksListCmd(cmd *cobra.Command, _ []string) error {
	statusFlag, err := cmd.Flags().GetString("status")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	var status model.CrawlStatus
	if statusFlag != "" {
		status = model.CrawlStatus(statusFlag)
		switch status {
		case model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusFailed:
		default:
			return fmt.Errorf("unknown status %q", statusFlag)
		}
	}

	store, err := openTaskDB()
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.ListTasks(cmd.Context(), status, limit)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tSTATUS\tURL\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			t.TaskID, t.Status, t.URL, t.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func newTasksShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a stored crawl task and its result",
		Long: `Show prints the stored result of one crawl task.

Examples:
  crawlerd tasks show crawl_1700000000_0
  crawlerd tasks show --json crawl_1700000000_0`,
		Args: cobra.ExactArgs(1),
		RunE: runTasksShowCmd,
	}

	cmd.Flags().BoolP("json", "j", false, "Output as JSON")

	return cmd
}

func runTasksShowCmd(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	verbose := getVerboseFlag(cmd)

	store, err := openTaskDB()
	if err != nil {
		return err
	}
	defer store.Close()

	task, err := store.GetTask(cmd.Context(), taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("no task with ID %s", taskID)
	}

	result, err := store.GetResult(cmd.Context(), taskID)
	if err != nil {
		return fmt.Errorf("failed to load result: %w", err)
	}
	if result == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %s is %s; no result stored yet.\n",
			task.TaskID, task.Status)
		return nil
	}

	var writer report.Writer
	if jsonOut {
		writer = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
	} else {
		writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(verbose))
	}

	_, err = writer.Write(result)
	return err
}

func newTasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id>",
		Short: "Delete a stored crawl task",
		Long:  `Delete removes one crawl task and its stored pages from the task database.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runTasksDeleteCmd,
	}
}

func runTasksDeleteCmd(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	store, err := openTaskDB()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteTask(cmd.Context(), taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", taskID)
	return nil
}
