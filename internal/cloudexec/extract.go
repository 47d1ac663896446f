package cloudexec

import "strings"

// commandPrefix marks a response line the model wants executed.
const commandPrefix = "EXEC:"

// ExtractCommands pulls the EXEC: lines out of a model response, in
// order. Leading whitespace is tolerated so commands inside code fences
// or list items still count.
func ExtractCommands(response string) []string {
	var commands []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, commandPrefix) {
			continue
		}
		cmd := strings.TrimSpace(strings.TrimPrefix(trimmed, commandPrefix))
		if cmd != "" {
			commands = append(commands, cmd)
		}
	}
	return commands
}
