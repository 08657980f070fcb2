package escalation

import (
	"encoding/json"
	"fmt"
	"strings"

	"schemamap/internal/canonical"
)

const promptTemplate = `You map spreadsheet column headers to a fixed set of canonical fields.

Canonical fields:
%s
- Ignore: anything unrelated, ambiguous or not listed above

Headers:
%s

Rules:
- Answer with exactly one JSON object and nothing else.
- Map every header to exactly one canonical field name from the list, or "Ignore".
- confidence is an integer from 0 to 100.
- reason is a short phrase.

Format:
{"mappings": [{"original": "<header>", "mapped_to": "<field>", "confidence": <0-100>, "reason": "<why>"}]}`

// BuildPrompt renders the instruction for one batch of headers.
func BuildPrompt(headers []string, table *canonical.Table) string {
	var fields strings.Builder

	for _, entry := range table.Entries() {
		fmt.Fprintf(&fields, "- %s: %s\n", entry.Type, entry.Description)
	}

	quoted, err := json.Marshal(headers)
	if err != nil {
		// []string always marshals
		quoted = []byte("[]")
	}

	return fmt.Sprintf(promptTemplate, strings.TrimRight(fields.String(), "\n"), quoted)
}
