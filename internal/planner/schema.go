// Package planner turns a mission plus the tool registry's descriptions into
// a validated, dependency-ordered TodoList (spec §4.5).
package planner

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// planSchemaDoc is the strict structured-output contract the LLM is asked to
// match (spec §4.5 step 2, "call llm.complete requesting JSON matching the
// TodoList schema").
const planSchemaDoc = `{
  "type": "object",
  "required": ["items"],
  "properties": {
    "items": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description"],
        "properties": {
          "position": {"type": "integer"},
          "description": {"type": "string"},
          "acceptance_criteria": {"type": "array", "items": {"type": "string"}},
          "dependencies": {"type": "array", "items": {"type": "integer"}},
          "chosen_tool": {"type": "string"}
        }
      }
    },
    "open_questions": {"type": "array", "items": {"type": "string"}},
    "notes": {"type": "string"}
  }
}`

var compiledPlanSchema *jsonschema.Schema

func init() {
	var err error
	compiledPlanSchema, err = jsonschema.CompileString("plan.schema.json", planSchemaDoc)
	if err != nil {
		panic("planner: invalid embedded plan schema: " + err.Error())
	}
}

// planDocument is the raw shape parsed from the LLM's JSON response, before
// normalization (spec §4.5 step 4).
type planDocument struct {
	Items []planItem `json:"items"`

	OpenQuestions []string `json:"open_questions,omitempty"`
	Notes         string   `json:"notes,omitempty"`
}

type planItem struct {
	Position           int            `json:"position"`
	Description        string         `json:"description"`
	AcceptanceCriteria []string       `json:"acceptance_criteria,omitempty"`
	Dependencies       []int          `json:"dependencies,omitempty"`
	ChosenTool         string         `json:"chosen_tool,omitempty"`
	ToolInput          map[string]any `json:"tool_input,omitempty"`
}

// parsePlanDocument decodes and schema-validates raw LLM output.
func parsePlanDocument(raw string) (*planDocument, error) {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, err
	}
	if err := compiledPlanSchema.Validate(decoded); err != nil {
		return nil, err
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
