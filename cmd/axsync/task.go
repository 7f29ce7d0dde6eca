package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/model"
	"github.com/agentx/assistant-core/internal/syncer"
	"github.com/agentx/assistant-core/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskAddDue      string
	taskAddPriority string
	taskAddCategory string
	taskAddDesc     string
	taskAddTags     []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a task",
	Long: `Create a task in the local cache and queue it for sync.

The --due flag accepts natural language ("tomorrow 5pm", "next friday")
as well as RFC 3339 timestamps.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		t := &model.Task{
			Title:       strings.Join(args, " "),
			Description: taskAddDesc,
			Priority:    taskAddPriority,
			Category:    taskAddCategory,
			Tags:        taskAddTags,
		}
		if taskAddDue != "" {
			due, err := parseDue(taskAddDue)
			if err != nil {
				fatalf("%v", err)
			}
			t.DueDate = &due
		}

		outcome, err := a.tasks.Create(ctx, t)
		if err != nil {
			fatalf("failed to create task: %v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("task %d %q", t.ID, t.Title))
	},
}

var (
	taskListAll       bool
	taskListCategory  string
	taskListCompleted bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks from the local cache",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		filter := cache.TaskFilter{Category: taskListCategory}
		if !taskListAll {
			completed := taskListCompleted
			filter.Completed = &completed
		}
		tasks, err := a.tasks.List(ctx, filter)
		if err != nil {
			fatalf("failed to list tasks: %v", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks.")
			return
		}
		for _, t := range tasks {
			printTask(t)
		}
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Toggle a task's completion state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		id := parseID(args[0])
		t, outcome, err := a.tasks.ToggleComplete(ctx, id)
		if err != nil {
			fatalf("%v", err)
		}
		state := "open"
		if t.Completed {
			state = "done"
		}
		printWriteResult(outcome, fmt.Sprintf("task %d is now %s", t.ID, state))
	},
}

var taskProgressCmd = &cobra.Command{
	Use:   "progress <id> <percent>",
	Short: "Set a task's progress (0-100)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		id := parseID(args[0])
		pct, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fatalf("invalid percent %q", args[1])
		}
		t, outcome, err := a.tasks.SetProgress(ctx, id, pct/100)
		if err != nil {
			fatalf("%v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("task %d at %.0f%%", t.ID, t.Progress*100))
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		id := parseID(args[0])
		outcome, err := a.tasks.Delete(ctx, id)
		if err != nil {
			fatalf("%v", err)
		}
		printWriteResult(outcome, fmt.Sprintf("task %d deleted", id))
	},
}

// parseDue accepts RFC 3339 first, then natural language.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand date %q", s)
	}
	return r.Time, nil
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		fatalf("invalid id %q", s)
	}
	return id
}

// printWriteResult tells the user whether the write synced inline or
// is waiting in the queue.
func printWriteResult(outcome syncer.Outcome, what string) {
	if outcome == syncer.OutcomeSynced {
		fmt.Printf("%s %s (synced)\n", ui.RenderPass("✓"), what)
	} else {
		fmt.Printf("%s %s (queued, will sync when online)\n", ui.RenderWarn("⏳"), what)
	}
}

func printTask(t *model.Task) {
	mark := " "
	if t.Completed {
		mark = ui.RenderPass("✓")
	}
	line := fmt.Sprintf("[%s] %d %s", mark, t.ID, t.Title)
	if t.Priority == model.PriorityHigh {
		line += " " + ui.RenderFail("(high)")
	}
	if t.DueDate != nil {
		line += " " + ui.RenderDim("due "+t.DueDate.Format("2006-01-02 15:04"))
	}
	if !t.Synced {
		line += " " + ui.RenderWarn("*")
	}
	fmt.Println(line)
}

func init() {
	taskAddCmd.Flags().StringVar(&taskAddDue, "due", "", "due date (natural language or RFC 3339)")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", "", "priority: low, medium, high")
	taskAddCmd.Flags().StringVar(&taskAddCategory, "category", "", "category label")
	taskAddCmd.Flags().StringVar(&taskAddDesc, "desc", "", "description")
	taskAddCmd.Flags().StringSliceVar(&taskAddTags, "tag", nil, "tag (repeatable)")

	taskListCmd.Flags().BoolVarP(&taskListAll, "all", "a", false, "include completed tasks")
	taskListCmd.Flags().StringVar(&taskListCategory, "category", "", "filter by category")
	taskListCmd.Flags().BoolVar(&taskListCompleted, "completed", false, "show only completed tasks")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskProgressCmd)
	taskCmd.AddCommand(taskRmCmd)
	rootCmd.AddCommand(taskCmd)
}
