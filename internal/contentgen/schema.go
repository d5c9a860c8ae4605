package contentgen

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// draftSchema constrains the generator's JSON output. Scores outside [0,1] are
// rejected here so malformed model output never reaches the quality gate as a
// silent pass.
const draftSchema = `{
	"type": "object",
	"required": ["cover_letter", "scores"],
	"properties": {
		"cover_letter": {"type": "string", "minLength": 1},
		"resume_summary": {"type": "string"},
		"scores": {
			"type": "object",
			"required": ["quality", "personalization", "ats_compatibility"],
			"properties": {
				"quality": {"type": "number", "minimum": 0, "maximum": 1},
				"personalization": {"type": "number", "minimum": 0, "maximum": 1},
				"ats_compatibility": {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}
}`

// ValidateDraft validates a generator JSON response against the draft schema.
func ValidateDraft(jsonText string) error {
	schemaLoader := gojsonschema.NewStringLoader(draftSchema)
	documentLoader := gojsonschema.NewStringLoader(jsonText)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate draft: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	for i, desc := range result.Errors() {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(desc.String())
	}
	return fmt.Errorf("draft validation failed: %s", sb.String())
}
