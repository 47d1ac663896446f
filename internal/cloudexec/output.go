package cloudexec

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
)

// WriteGitHubOutput appends key/value pairs to the workflow output file
// (the $GITHUB_OUTPUT contract) using the documented heredoc form. The
// delimiter is random so a value cannot smuggle extra outputs.
func WriteGitHubOutput(path string, outputs map[string]string) error {
	if path == "" {
		return errors.New("cloudexec: output file path is empty")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cloudexec: opening output file: %w", err)
	}

	for _, key := range slices.Sorted(maps.Keys(outputs)) {
		delim, err := outputDelimiter()
		if err != nil {
			f.Close()
			return err
		}
		if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", key, delim, outputs[key], delim); err != nil {
			f.Close()
			return fmt.Errorf("cloudexec: writing output %q: %w", key, err)
		}
	}
	return f.Close()
}

func outputDelimiter() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("cloudexec: generating delimiter: %w", err)
	}
	return "ghadelim_" + hex.EncodeToString(b[:]), nil
}
