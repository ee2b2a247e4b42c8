package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func ptr(s string) *string {
	return &s
}

func TestBuildScript(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		want    string
		wantErr bool
	}{
		{
			name: "commit types letter and space",
			req:  Request{Action: "commit", Letter: "A"},
			want: `tell application "System Events" to keystroke "A "`,
		},
		{
			name: "custom delimiter",
			req:  Request{Action: "commit", Letter: "B", Config: json.RawMessage(`{"delimiter": ""}`)},
			want: `tell application "System Events" to keystroke "B"`,
		},
		{
			name: "transcript delimiter",
			req:  Request{Action: "commit", Letter: "C", Delimiter: ptr("")},
			want: `tell application "System Events" to keystroke "C"`,
		},
		{
			name: "config overrides transcript delimiter",
			req:  Request{Action: "commit", Letter: "D", Delimiter: ptr(""), Config: json.RawMessage(`{"delimiter": "_"}`)},
			want: `tell application "System Events" to keystroke "D_"`,
		},
		{
			name: "quotes are escaped",
			req:  Request{Action: "commit", Letter: `"`, Config: json.RawMessage(`{"delimiter": ""}`)},
			want: `tell application "System Events" to keystroke "\""`,
		},
		{
			name: "clear does nothing by default",
			req:  Request{Action: "clear"},
			want: "",
		},
		{
			name: "clear presses return",
			req:  Request{Action: "clear", Config: json.RawMessage(`{"newline_on_clear": true}`)},
			want: `tell application "System Events" to key code 36`,
		},
		{name: "missing letter", req: Request{Action: "commit"}, wantErr: true},
		{name: "unknown action", req: Request{Action: "shortcut"}, wantErr: true},
		{name: "bad config", req: Request{Action: "commit", Letter: "A", Config: json.RawMessage(`[]`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildScript(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildScript() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildScript() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	writeResponse(&buf, errors.New("boom"))

	var resp Response
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Success || resp.Error != "boom" {
		t.Errorf("unexpected response %+v", resp)
	}
}
