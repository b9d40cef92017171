package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/overture-dev/overture/internal/domain"
)

// printTask renders a task in the requested output format.
func printTask(w io.Writer, task *domain.Task, format string) error {
	if format == OutputJSON {
		return printJSON(w, task)
	}

	fmt.Fprintf(w, "Task:    %s\n", task.ID)
	fmt.Fprintf(w, "Repo:    %s\n", task.RepoURL)
	fmt.Fprintf(w, "Status:  %s\n", task.Status)
	if task.Action != "" {
		fmt.Fprintf(w, "Action:  %s\n", task.Action)
	}
	if task.PlanVersion > 0 {
		fmt.Fprintf(w, "Plan:    version %d (%d chars)\n", task.PlanVersion, len(task.Plan))
	}
	if task.ApprovedBy != "" {
		fmt.Fprintf(w, "Approved by %s at %s\n", task.ApprovedBy, task.ApprovedAt.Format(time.RFC3339))
	}
	if task.Error != "" {
		fmt.Fprintf(w, "Error:   %s\n", task.Error)
	}
	fmt.Fprintf(w, "Created: %s\n", task.CreatedAt.Format(time.RFC3339))
	return nil
}

// printTaskList renders tasks as a compact table or JSON array.
func printTaskList(w io.Writer, tasks []*domain.Task, format string) error {
	if format == OutputJSON {
		return printJSON(w, tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return nil
	}

	fmt.Fprintf(w, "%-42s  %-18s  %-18s  %s\n", "TASK", "STATUS", "ACTION", "REPO")
	for _, task := range tasks {
		action := string(task.Action)
		if action == "" {
			action = "-"
		}
		fmt.Fprintf(w, "%-42s  %-18s  %-18s  %s\n", task.ID, task.Status, action, task.RepoURL)
	}
	return nil
}

// printTimeline renders a task's audit timeline.
func printTimeline(w io.Writer, timeline []domain.TimelineEntry) {
	if len(timeline) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTimeline:")
	for _, entry := range timeline {
		content := entry.Content
		if len(content) > 80 {
			content = content[:77] + "..."
		}
		content = strings.ReplaceAll(content, "\n", " ")
		fmt.Fprintf(w, "  %s  %-20s  %s\n",
			entry.CreatedAt.Format(time.RFC3339), entry.Type, content)
	}
}

// printJSON renders v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
