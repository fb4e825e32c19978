package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// generatedSchema describes the generate-feedback payload. Only the fields the
// lesson plan and quiz synthesis depend on are constrained.
const generatedSchema = `{
  "type": "object",
  "properties": {
    "subtopic": {
      "type": "object",
      "properties": {
        "id":   {"type": "string"},
        "name": {"type": "string"}
      }
    },
    "steps": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["stepNumber", "content"],
        "properties": {
          "id":          {"type": "string"},
          "stepNumber":  {"type": "integer"},
          "stepName":    {"type": "string"},
          "content":     {"type": "string"},
          "timeMinutes": {"type": "integer", "minimum": 0}
        }
      }
    }
  }
}`

var generatedLoader = gojsonschema.NewStringLoader(generatedSchema)

// decodeGenerated validates and decodes a generate-feedback payload. An empty
// payload or one without steps yields an empty step list.
func decodeGenerated(raw []byte) (GeneratedFeedback, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return GeneratedFeedback{}, nil
	}

	result, err := gojsonschema.Validate(generatedLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return GeneratedFeedback{}, fmt.Errorf("validate generated feedback: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return GeneratedFeedback{}, fmt.Errorf("invalid generated feedback: %s", strings.Join(msgs, "; "))
	}

	var out GeneratedFeedback
	if err := json.Unmarshal(raw, &out); err != nil {
		return GeneratedFeedback{}, fmt.Errorf("unmarshal generated feedback: %w", err)
	}
	return out, nil
}
