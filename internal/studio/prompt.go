package studio

import (
	"fmt"
	"strings"
)

const (
	fallbackPrompt = "Fotografía profesional de producto."
	targetLanguage = "ESPAÑOL"

	scopeRegion  = "específicamente en la zona que he marcado visualmente"
	scopeGeneral = "en la imagen general"
)

// BuildPrompt returns the template brief for nodeID, extended with an edit
// clause when instruction is non-empty.
func BuildPrompt(nodeID, instruction string, areaSelected bool) string {
	base := fallbackPrompt
	if t, ok := LookupTemplate(nodeID); ok {
		base = t.Prompt
	}

	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return base
	}

	scope := scopeGeneral
	if areaSelected {
		scope = scopeRegion
	}

	return fmt.Sprintf(
		"%s ADICIONALMENTE, aplica la siguiente modificación %s: %s. Asegúrate de que cualquier texto generado siga siendo en %s.",
		base, scope, instruction, targetLanguage,
	)
}
