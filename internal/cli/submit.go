package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-audio/scribed/internal/domain"
)

func init() {
	submitCmd.Flags().StringVar(&submitModel, "model", "", "Whisper model name or path")
	submitCmd.Flags().StringVar(&submitLanguage, "language", "", "Source language (default auto-detect)")
	submitCmd.Flags().StringVar(&submitFormat, "format", "text", "Output format: text or markdown")
	submitCmd.Flags().BoolVar(&submitWatch, "watch", false, "Follow progress until the task finishes")
	rootCmd.AddCommand(submitCmd)
}

var (
	submitModel    string
	submitLanguage string
	submitFormat   string
	submitWatch    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Submit a media URL for transcription",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	body := map[string]string{
		"source_url":    args[0],
		"model":         submitModel,
		"language":      submitLanguage,
		"output_format": submitFormat,
	}

	var task domain.Task
	if err := doJSON(http.MethodPost, "/api/tasks/", body, &task); err != nil {
		return err
	}

	fmt.Printf("Task %s created (%s)\n", task.ID, task.Input.SourceKind)
	if submitWatch {
		return watchTask(task.ID)
	}
	fmt.Printf("Run 'scribed watch %s' to follow progress.\n", task.ID)
	return nil
}
