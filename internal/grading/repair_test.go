package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRepairStripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"summary\": \"fine\"}\n```"
	got := Repair(raw)
	require.Equal(t, `{"summary": "fine"}`, got)
}

func TestRepairDropsLeadingProseAndTrailingCommentary(t *testing.T) {
	raw := "Here is the evaluation:\n{\"summary\": \"ok\"}\nHope this helps!"
	got := Repair(raw)
	require.Equal(t, `{"summary": "ok"}`, got)
	require.True(t, json.Valid([]byte(got)))
}

func TestRepairClosesUnbalancedBraces(t *testing.T) {
	raw := `{"strengths": ["clear intro", "good sources"`
	got := Repair(raw)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)

	var decoded map[string][]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	require.Equal(t, []string{"clear intro", "good sources"}, decoded["strengths"])
}

func TestRepairClosesUnterminatedString(t *testing.T) {
	raw := `{"summary": "the essay was cut off mid`
	got := Repair(raw)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)
}

func TestRepairClosesStringCutMidEscape(t *testing.T) {
	raw := `{"summary": "quoting \`
	got := Repair(raw)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	require.Equal(t, "quoting ", decoded["summary"])
}

func TestRepairRemovesTrailingCommas(t *testing.T) {
	raw := `{"strengths": ["a", "b",], "summary": "x",}`
	got := Repair(raw)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)
}

func TestRepairTruncatedAfterComma(t *testing.T) {
	raw := `{"strengths": ["a"], "improvements": ["b"],`
	got := Repair(raw)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)
}

func TestRepairNoObjectYieldsEmpty(t *testing.T) {
	require.Empty(t, Repair("no json here at all"))
	require.Empty(t, Repair(""))
}

func TestRepairLeavesValidJSONUntouched(t *testing.T) {
	raw := `{"summary": "already fine", "overallScore": 80}`
	require.Equal(t, raw, Repair(raw))
}

func TestRepairIsIdempotent(t *testing.T) {
	inputs := []string{
		"```json\n{\"summary\": \"fine\"}\n```",
		`{"strengths": ["clear intro"`,
		`{"summary": "cut off mid`,
		`{"summary": "cut mid-escape \`,
		`{"strengths": ["a",], "summary": "x",}`,
		`{"a": {"b": ["c", {"d": 1`,
		"prose {\"summary\": \"ok\"} trailing",
		"garbage without json",
	}

	for _, in := range inputs {
		once := Repair(in)
		twice := Repair(once)
		require.Equal(t, once, twice, "input: %s", in)
	}
}

func TestRepairIgnoresBracesInsideStrings(t *testing.T) {
	raw := `{"summary": "use {braces} and [brackets] freely"}`
	got := Repair(raw)
	require.Equal(t, raw, got)

	truncated := `{"summary": "escaped \" quote and { inside`
	got = Repair(truncated)
	require.True(t, json.Valid([]byte(got)), "repaired output: %s", got)
}
