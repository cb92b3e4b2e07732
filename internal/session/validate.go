package session

import (
	"fmt"
	"strings"
)

const maxNameLength = 50

const invalidNameChars = `/\:*?"<>|`

// ValidationError reports a rejected session name. The operation that
// triggered it makes no state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session name: %s", e.Reason)
}

// ValidateName checks a proposed session name: non-empty after trimming,
// at most 50 characters, and free of path-special characters.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return &ValidationError{Reason: "name is empty"}
	}
	if len([]rune(trimmed)) > maxNameLength {
		return &ValidationError{Reason: fmt.Sprintf("name exceeds %d characters", maxNameLength)}
	}
	if strings.ContainsAny(trimmed, invalidNameChars) {
		return &ValidationError{Reason: `name contains one of / \ : * ? " < > |`}
	}
	return nil
}
