// Package main provides a keyboard plugin for macOS.
// It types each committed letter into the focused application via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Letter    string          `json:"letter"`
	Delimiter *string         `json:"delimiter"`
	Text      string          `json:"text"`
	Session   string          `json:"session"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin configuration.
type Config struct {
	// Delimiter is typed after every letter. Defaults to the delimiter the
	// transcript used, or a space.
	Delimiter *string `json:"delimiter"`
	// NewlineOnClear presses return when a new translation starts.
	NewlineOnClear bool `json:"newline_on_clear"`
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(os.Stdout, fmt.Errorf("failed to decode request: %w", err))
		return
	}

	script, err := buildScript(req)
	if err == nil && script != "" {
		err = runAppleScript(script)
	}
	writeResponse(os.Stdout, err)
}

// buildScript returns the AppleScript for a request, or "" when nothing needs typing.
func buildScript(req Request) (string, error) {
	cfg := Config{}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}

	switch req.Action {
	case "commit":
		if req.Letter == "" {
			return "", fmt.Errorf("letter is required")
		}
		delimiter := " "
		switch {
		case cfg.Delimiter != nil:
			delimiter = *cfg.Delimiter
		case req.Delimiter != nil:
			delimiter = *req.Delimiter
		}
		return keystrokeScript(req.Letter + delimiter), nil
	case "clear":
		if !cfg.NewlineOnClear {
			return "", nil
		}
		return `tell application "System Events" to key code 36`, nil
	default:
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}
}

// keystrokeScript types text into the focused application.
func keystrokeScript(text string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
}

// writeResponse writes a success or error response.
func writeResponse(w io.Writer, err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
