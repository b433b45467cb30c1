package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scribe-audio/scribed/internal/domain"
	"github.com/scribe-audio/scribed/internal/orchestrator"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <task-id>",
	Short: "Follow a task's progress until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchTask(args[0])
	},
}

// watchTask consumes the task's SSE stream, printing one line per
// progress event.
func watchTask(id string) error {
	resp, err := http.Get(apiBase() + "/api/tasks/" + id + "/stream")
	if err != nil {
		return fmt.Errorf("cannot reach scribed at %s: %w", apiBase(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev orchestrator.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		printEvent(ev)

		if ev.Status == domain.TaskFailed {
			return fmt.Errorf("task failed: %s", ev.Message)
		}
		if ev.Status == domain.TaskCompleted {
			return nil
		}
	}
	return scanner.Err()
}

func printEvent(ev orchestrator.Event) {
	switch {
	case ev.Status == domain.TaskCompleted:
		fmt.Printf("[100%%] completed")
		for _, a := range ev.Artifacts {
			fmt.Printf(" %s", a.FileName)
		}
		fmt.Println()
	case ev.Status == domain.TaskFailed:
		fmt.Printf("[%3.0f%%] failed: %s\n", ev.Progress, ev.Message)
	case ev.Stage != "":
		msg := ev.Message
		if msg == "" {
			msg = string(ev.Stage)
		}
		fmt.Printf("[%3.0f%%] %s\n", ev.Progress, msg)
	default:
		fmt.Printf("[%3.0f%%] %s\n", ev.Progress, ev.Status)
	}
}
