package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-audio/scribed/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the current state of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var task domain.Task
	if err := doJSON(http.MethodGet, "/api/tasks/"+args[0], nil, &task); err != nil {
		return err
	}

	fmt.Printf("Task:     %s\n", task.ID)
	fmt.Printf("Source:   %s (%s)\n", task.Input.SourceURL, task.Input.SourceKind)
	fmt.Printf("Status:   %s\n", task.Status)
	if task.Stage != "" {
		fmt.Printf("Stage:    %s\n", task.Stage)
	}
	fmt.Printf("Progress: %.0f%%\n", task.Progress)
	if task.Error != nil {
		fmt.Printf("Error:    [%s] %s\n", task.Error.Kind, task.Error.Message)
	}
	for _, a := range task.Artifacts {
		fmt.Printf("Artifact: %s (%d bytes, %s)\n", a.FileName, a.SizeBytes, a.Format)
	}
	return nil
}
