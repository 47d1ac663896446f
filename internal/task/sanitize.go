package task

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxDescriptionLength bounds task descriptions. Tasks are rendered into
// file names and markdown, so the limit is deliberately tight.
const MaxDescriptionLength = 500

// allowedChars is the whitelist for task descriptions: letters, digits,
// whitespace, and basic punctuation. Everything else is rejected rather
// than escaped, since descriptions end up in files an agent executes on.
var allowedChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.,!?]+$`)

// Description validation errors.
var (
	ErrEmptyDescription   = errors.New("task: description is empty")
	ErrDescriptionTooLong = fmt.Errorf("task: description exceeds %d characters", MaxDescriptionLength)
	ErrForbiddenChars     = errors.New("task: description contains forbidden characters")
	ErrPathSeparator      = errors.New("task: description must not contain path separators")
)

// SanitizeDescription trims and validates a task description, returning
// the cleaned text. The path separator check is redundant with the
// character whitelist but kept explicit: it is the one rule that must
// survive any future loosening of the whitelist.
func SanitizeDescription(raw string) (string, error) {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return "", ErrEmptyDescription
	}
	if len(desc) > MaxDescriptionLength {
		return "", ErrDescriptionTooLong
	}
	if strings.ContainsAny(desc, `/\`) {
		return "", ErrPathSeparator
	}
	if !allowedChars.MatchString(desc) {
		return "", ErrForbiddenChars
	}
	return desc, nil
}
