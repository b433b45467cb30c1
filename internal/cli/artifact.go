package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/scribe-audio/scribed/internal/domain"
)

func init() {
	rootCmd.AddCommand(artifactCmd)
}

var artifactCmd = &cobra.Command{
	Use:   "artifact <task-id>",
	Short: "Print the transcript download URL for a completed task",
	Args:  cobra.ExactArgs(1),
	RunE:  runArtifact,
}

func runArtifact(cmd *cobra.Command, args []string) error {
	var resp struct {
		Artifact    domain.Artifact `json:"artifact"`
		DownloadURL string          `json:"download_url"`
	}
	if err := doJSON(http.MethodGet, "/api/tasks/"+args[0]+"/artifact", nil, &resp); err != nil {
		return err
	}

	fmt.Printf("File:     %s (%d bytes)\n", resp.Artifact.FileName, resp.Artifact.SizeBytes)
	if resp.Artifact.DetectedLanguage != "" {
		fmt.Printf("Language: %s\n", resp.Artifact.DetectedLanguage)
	}
	fmt.Println(resp.DownloadURL)
	return nil
}
