package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// scriptPlugin writes a shell script plugin into a temp directory.
func scriptPlugin(t *testing.T, name, script string, actions ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name+".sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
			Actions:    actions,
		},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "ok-plugin", `cat <<'EOF'
{"success":true,"data":{"message":"typed"}}
EOF
`)

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{
		Action: ActionCommit,
		Letter: "A",
		Text:   "A ",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if response.Error != "" {
		t.Errorf("expected empty error, got %q", response.Error)
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "typed" {
		t.Errorf("expected message 'typed', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`)

	response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{
		Action:  ActionCommit,
		Letter:  "L",
		Text:    "A L ",
		Session: "session-1",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	got := data.Received
	if got.Action != ActionCommit || got.Letter != "L" || got.Text != "A L " || got.Session != "session-1" {
		t.Errorf("plugin received %+v", got)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `sleep 10
echo '{"success":true}'
`)

	_, err := NewExecutor(100).Execute(context.Background(), plugin, &Request{Action: ActionCommit})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	if !strings.Contains(err.Error(), "timeout") && !strings.Contains(err.Error(), "killed") {
		t.Errorf("expected timeout-related error, got: %v", err)
	}
}

func TestExecutor_CanceledContext(t *testing.T) {
	plugin := scriptPlugin(t, "slow-plugin", `sleep 10
echo '{"success":true}'
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewExecutor(5000).Execute(ctx, plugin, &Request{Action: ActionCommit}); err == nil {
		t.Fatal("expected error for canceled context, got nil")
	}
}

func TestExecutor_Execute_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr bool
		wantMsg string
	}{
		{
			name:    "error response",
			script:  `echo '{"success":false,"error":"something went wrong"}'`,
			wantMsg: "something went wrong",
		},
		{
			name:    "invalid json",
			script:  `echo 'not valid json'`,
			wantErr: true,
		},
		{
			name:    "non-zero exit",
			script:  "echo 'Error: something failed' >&2\nexit 1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, "plugin", tt.script+"\n")

			response, err := NewExecutor(5000).Execute(context.Background(), plugin, &Request{Action: ActionCommit})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() failed: %v", err)
			}
			if response.Success {
				t.Errorf("expected success=false, got true")
			}
			if response.Error != tt.wantMsg {
				t.Errorf("expected error %q, got %q", tt.wantMsg, response.Error)
			}
		})
	}
}

func TestNewExecutor(t *testing.T) {
	executor := NewExecutor(3000)
	if executor == nil {
		t.Fatal("NewExecutor() returned nil")
	}
	if executor.timeoutMs != 3000 {
		t.Errorf("expected timeoutMs=3000, got %d", executor.timeoutMs)
	}
}
