package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scribe-audio/scribed/internal/domain"
)

func init() {
	tasksCmd.Flags().StringVar(&tasksStatus, "status", "", "Filter by status (pending, running, completed, failed)")
	tasksCmd.Flags().IntVar(&tasksLimit, "limit", 20, "Maximum number of tasks to show")
	rootCmd.AddCommand(tasksCmd)
}

var (
	tasksStatus string
	tasksLimit  int
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"ls"},
	Short:   "List recent transcription tasks",
	RunE:    runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if tasksStatus != "" {
		q.Set("status", tasksStatus)
	}
	q.Set("limit", fmt.Sprint(tasksLimit))

	var resp struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if err := doJSON(http.MethodGet, "/api/tasks/?"+q.Encode(), nil, &resp); err != nil {
		return err
	}

	if len(resp.Tasks) == 0 {
		fmt.Println("No tasks yet. Run 'scribed submit <url>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tSOURCE\tCREATED")
	for _, t := range resp.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n",
			t.ID,
			t.Status,
			t.Progress,
			truncate(t.Input.SourceURL, 48),
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
