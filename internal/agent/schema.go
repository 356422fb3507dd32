package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	inqerrors "github.com/inquira/inquira/internal/errors"
)

const planSchemaJSON = `{
	"type": "object",
	"required": ["queries"],
	"properties": {
		"queries": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["query"],
				"properties": {
					"query": {"type": "string", "minLength": 1},
					"k": {"type": "integer", "minimum": 1},
					"keyword_weight": {"type": "number", "minimum": 0, "maximum": 1},
					"semantic_weight": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		},
		"draft": {"type": "string"}
	}
}`

const verdictSchemaJSON = `{
	"type": "object",
	"required": ["decision"],
	"properties": {
		"decision": {"type": "string", "enum": ["accept", "retry"]},
		"critique": {"type": "string"},
		"missing": {"type": "string"},
		"suggested_queries": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	planSchema    = gojsonschema.NewStringLoader(planSchemaJSON)
	verdictSchema = gojsonschema.NewStringLoader(verdictSchemaJSON)
)

// decodeValidated unmarshals raw LLM output into out after validating
// it against the stage's schema. Models sometimes wrap JSON in code
// fences; those are stripped first.
func decodeValidated(raw string, schema gojsonschema.JSONLoader, out any) error {
	cleaned := stripCodeFence(raw)

	result, err := gojsonschema.Validate(schema, gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return inqerrors.New(inqerrors.ErrCodeStageOutputInvalid, "stage output is not valid JSON", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			issues = append(issues, e.String())
		}
		return inqerrors.New(inqerrors.ErrCodeStageOutputInvalid,
			fmt.Sprintf("stage output failed schema validation: %s", strings.Join(issues, "; ")), nil)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return inqerrors.New(inqerrors.ErrCodeStageOutputInvalid, "stage output could not be decoded", err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
