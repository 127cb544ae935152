package templating

import (
	"encoding/json"
	"fmt"
	"html/template"
)

// jsonLD marshals v as indented JSON for a <script type="application/ld+json">
// element. The encoder escapes <, > and &, so the result cannot close the
// script element early.
func jsonLD(v any) (template.JS, error) {
	data, err := json.MarshalIndent(v, "    ", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal structured data: %w", err)
	}
	return template.JS(data), nil
}
