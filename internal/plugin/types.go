// Package plugin runs external executables that receive every committed letter.
package plugin

import (
	"encoding/json"
	"slices"
)

// Actions sent to plugins.
const (
	// ActionCommit delivers one committed letter.
	ActionCommit = "commit"
	// ActionClear announces that a new translation has started.
	ActionClear = "clear"
)

// Manifest describes a plugin's metadata and the actions it accepts.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the plugin declared the action.
// A manifest without actions accepts commits only.
func (m Manifest) Supports(action string) bool {
	if len(m.Actions) == 0 {
		return action == ActionCommit
	}
	return slices.Contains(m.Actions, action)
}

// Request is the JSON document a plugin reads from stdin.
// Config is filled per plugin by the Dispatcher.
type Request struct {
	Action  string `json:"action"`
	Letter  string `json:"letter,omitempty"`
	// Delimiter is the text the transcript appended after Letter.
	Delimiter *string         `json:"delimiter,omitempty"`
	Text      string          `json:"text"`
	Session   string          `json:"session"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is the JSON document a plugin writes to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string

	// Config is sent with every request to this plugin.
	Config json.RawMessage
}
