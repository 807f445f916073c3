package pipeline

import (
	"fmt"
	"strings"

	"github.com/itoalabs/insight/pkg/pipeline/prompts"
)

// Prompts contains the pipeline system prompts loaded from embedded files.
type Prompts struct {
	Interpret string // Prompt for schema interpretation
	Dashboard string // Prompt for dashboard plan design
	Recommend string // Prompt for advisory recommendations
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Interpret, err = loadPrompt("INTERPRET.md"); err != nil {
		return nil, fmt.Errorf("failed to load INTERPRET: %w", err)
	}
	if p.Dashboard, err = loadPrompt("DASHBOARD.md"); err != nil {
		return nil, fmt.Errorf("failed to load DASHBOARD: %w", err)
	}
	if p.Recommend, err = loadPrompt("RECOMMEND.md"); err != nil {
		return nil, fmt.Errorf("failed to load RECOMMEND: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
