package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cancelCmd)
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Request cancellation of a running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doJSON(http.MethodPost, "/api/tasks/"+args[0]+"/cancel", nil, nil); err != nil {
			return err
		}
		fmt.Printf("Task %s will stop at the next stage boundary.\n", args[0])
		return nil
	},
}
