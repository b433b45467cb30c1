package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/scribe-audio/scribed/internal/daemon"
)

var serverAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "",
		"API server address (default from config)")
}

// apiBase resolves the server base URL: --server flag first, then the
// daemon config.
func apiBase() string {
	if serverAddr != "" {
		return "http://" + serverAddr
	}
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return "http://127.0.0.1:8333"
	}
	return fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port)
}

// apiError is the server's error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// doJSON performs one API call and decodes the response into out.
func doJSON(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiBase()+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach scribed at %s (is 'scribed serve' running?): %w", apiBase(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
