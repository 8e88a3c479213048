package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFenced(t *testing.T) {
	t.Run("json fence", func(t *testing.T) {
		response := "Here is the plan:\n```json\n{\"a\": 1}\n```\nDone."
		assert.Equal(t, `{"a": 1}`, extractFenced(response))
	})

	t.Run("bare fence", func(t *testing.T) {
		response := "```\n{\"a\": 1}\n```"
		assert.Equal(t, `{"a": 1}`, extractFenced(response))
	})

	t.Run("no fence", func(t *testing.T) {
		assert.Equal(t, "", extractFenced(`{"a": 1}`))
	})

	t.Run("unclosed fence returns remainder", func(t *testing.T) {
		response := "```json\n{\"a\": 1"
		assert.Equal(t, `{"a": 1`, extractFenced(response))
	})
}

func TestExtractBalanced(t *testing.T) {
	response := `Sure! {"sources": ["a"], "note": "has { inside string"} trailing`
	got := extractBalanced(response)
	assert.True(t, json.Valid([]byte(got)), "extracted fragment should parse: %s", got)
}

func TestRepairTruncated(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"array cut after separator", `{"sources": ["a", "b",`, `{"sources": ["a", "b"]}`},
		{"object cut after value", `{"a": 1`, `{"a": 1}`},
		{"nested object and array", `{"a": [{"b": 2},`, `{"a": [{"b": 2}]}`},
		{"string cut mid-token", `{"a": "trunc`, `{"a": "trunc"}`},
		{"already valid", `{"a": 1}`, `{"a": 1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := repairTruncated(tc.input)
			assert.Equal(t, tc.want, got)
			require.True(t, json.Valid([]byte(got)), "repaired output must parse")
		})
	}
}

func TestParseStructured(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		data, repaired, ok := parseStructured(`{"a": 1}`)
		require.True(t, ok)
		assert.False(t, repaired)
		assert.JSONEq(t, `{"a": 1}`, string(data))
	})

	t.Run("markdown wrapper", func(t *testing.T) {
		data, repaired, ok := parseStructured("Plan below.\n```json\n{\"a\": 1}\n```")
		require.True(t, ok)
		assert.False(t, repaired)
		assert.JSONEq(t, `{"a": 1}`, string(data))
	})

	t.Run("truncated triggers repair", func(t *testing.T) {
		data, repaired, ok := parseStructured(`{"sources": ["a", "b",`)
		require.True(t, ok)
		assert.True(t, repaired)
		assert.JSONEq(t, `{"sources": ["a", "b"]}`, string(data))
	})

	t.Run("hopeless input fails", func(t *testing.T) {
		_, _, ok := parseStructured("no structure here at all")
		assert.False(t, ok)
	})
}
