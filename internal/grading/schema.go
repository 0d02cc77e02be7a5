package grading

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CriterionScore is the per-criterion entry of the model's feedback.
type CriterionScore struct {
	CriterionName string  `json:"criterionName"`
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
}

// Feedback is the validated shape of the model's grading output.
type Feedback struct {
	Strengths      []string         `json:"strengths"`
	Improvements   []string         `json:"improvements"`
	Suggestions    []string         `json:"suggestions"`
	Summary        string           `json:"summary"`
	OverallScore   float64          `json:"overallScore"`
	CriteriaScores []CriterionScore `json:"criteriaScores"`
}

const resultSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["strengths", "improvements", "suggestions", "summary", "overallScore", "criteriaScores"],
  "additionalProperties": false,
  "properties": {
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "summary": {"type": "string"},
    "overallScore": {"type": "number", "minimum": 0, "maximum": 100},
    "criteriaScores": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["criterionName", "score", "feedback"],
        "additionalProperties": false,
        "properties": {
          "criterionName": {"type": "string"},
          "score": {"type": "number", "minimum": 0},
          "feedback": {"type": "string"}
        }
      }
    }
  }
}`

var resultSchema = jsonschema.MustCompileString("grading_result.schema.json", resultSchemaJSON)

// decodeFeedback parses text as JSON, validates it against the strict output
// schema and decodes it into a Feedback value.
func decodeFeedback(text string) (Feedback, error) {
	var generic interface{}
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		return Feedback{}, fmt.Errorf("parse feedback json: %w", err)
	}

	if err := resultSchema.Validate(generic); err != nil {
		return Feedback{}, fmt.Errorf("feedback schema: %w", err)
	}

	var feedback Feedback
	if err := json.Unmarshal([]byte(text), &feedback); err != nil {
		return Feedback{}, fmt.Errorf("decode feedback: %w", err)
	}

	return feedback, nil
}
