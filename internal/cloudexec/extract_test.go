package cloudexec

import (
	"slices"
	"testing"
)

func TestExtractCommands(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "no commands",
			response: "ANALYZE\nNothing to run here.",
			want:     nil,
		},
		{
			name: "commands in order",
			response: "ANALYZE\nLooking at the parser.\n" +
				"EXEC: go vet ./...\n" +
				"Some commentary.\n" +
				"EXEC: go test ./internal/parser\n" +
				"REPORT\nDone.",
			want: []string{"go vet ./...", "go test ./internal/parser"},
		},
		{
			name:     "indented inside a fence",
			response: "```\n  EXEC: go build ./...\n```",
			want:     []string{"go build ./..."},
		},
		{
			name:     "bare prefix skipped",
			response: "EXEC:\nEXEC:   \nEXEC: ls",
			want:     []string{"ls"},
		},
		{
			name:     "prefix mid-line ignored",
			response: "run EXEC: ls manually",
			want:     nil,
		},
		{
			name:     "extra spaces after prefix",
			response: "EXEC:    git status   ",
			want:     []string{"git status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCommands(tt.response)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ExtractCommands() = %q, want %q", got, tt.want)
			}
		})
	}
}
