package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// stripFences removes a surrounding markdown code fence (with or without a
// language identifier) from a model response.
func stripFences(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "```") {
		return response
	}
	lines := strings.Split(response, "\n")
	if len(lines) < 3 {
		return response
	}
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// decodeJSON strictly parses a model response into v after fence stripping.
func decodeJSON(response string, v any) error {
	cleaned := stripFences(response)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("invalid JSON: %w (response: %s)", err, truncateForError(cleaned))
	}
	return nil
}

// truncateForError truncates a string for inclusion in error messages.
func truncateForError(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
