package dispatch

import (
	"strings"

	"storyboard-server/internal/domain"
)

// stylePreamble wraps stored shot text for image generation. It pins visual
// consistency across a project's shots and keeps the model from editorializing
// the narrative.
const stylePreamble = `Illustrate the storyboard beat below exactly as written.
Keep character designs, wardrobe, color palette and rendering style consistent with the other shots of this project.
Depict every event, character and prop the text names, and do not invent any that it does not.`

// buildPrompt returns the vendor prompt for a target: a caller-supplied custom
// prompt verbatim, otherwise the shot's stored text wrapped in the style
// preamble.
func buildPrompt(custom string, shot *domain.Shot) string {
	if strings.TrimSpace(custom) != "" {
		return custom
	}
	text := shot.Script
	if strings.TrimSpace(text) == "" {
		text = shot.Description
	}
	return stylePreamble + "\n\n" + text
}
