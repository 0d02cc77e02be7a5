package grading

import (
	"fmt"
	"strings"

	"github.com/oku-edu/oku-go-api/internal/models"
)

// BuildInstruction renders the rubric into the system instruction for the
// grading model, including the exact JSON shape the response must follow.
func BuildInstruction(rubric models.Rubric) string {
	var b strings.Builder

	b.WriteString("You are an instructor's grading assistant. Evaluate the student submission against the rubric below and respond with a single JSON object.\n\n")
	b.WriteString("# Rubric: ")
	b.WriteString(rubric.Title)
	b.WriteString("\n")

	for _, criterion := range rubric.Criteria {
		fmt.Fprintf(&b, "\n## %s (max score %.0f, weight %.2f)\n", criterion.Name, criterion.MaxScore, criterion.Weight)
		if criterion.Description != "" {
			b.WriteString(criterion.Description)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n# Response format\n")
	b.WriteString("Respond with JSON only, no prose, using exactly these keys:\n")
	b.WriteString(`{"strengths": [string], "improvements": [string], "suggestions": [string], "summary": string, "overallScore": number 0-100, "criteriaScores": [{"criterionName": string, "score": number, "feedback": string}]}`)
	b.WriteString("\n")
	fmt.Fprintf(&b, "criteriaScores must contain exactly %d entries, one per rubric criterion, in rubric order using the criterion names above.\n", len(rubric.Criteria))

	return b.String()
}
