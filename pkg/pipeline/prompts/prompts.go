// Package prompts embeds the system prompts used by the analysis pipeline.
package prompts

import "embed"

//go:embed *.md
var PromptsFS embed.FS
