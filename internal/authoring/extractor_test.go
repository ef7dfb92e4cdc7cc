package authoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSuggestion_WellFormedBlock(t *testing.T) {
	text := "Here is the task I suggest:\n\n```json\n" +
		`{"type":"task_suggestion","title":"Add login","description":"Implement email login","labels":["feature"],"priority":"high"}` +
		"\n```\n"

	sug := ExtractSuggestion(text)
	require.NotNil(t, sug)
	assert.Equal(t, "Add login", sug.Title)
	assert.Equal(t, "Implement email login", sug.Description)
	assert.Equal(t, []string{"feature"}, sug.Labels)
	assert.Equal(t, PriorityHigh, sug.Priority)
}

func TestExtractSuggestion_LastBlockWins(t *testing.T) {
	text := "First draft:\n```json\n" +
		`{"type":"task_suggestion","title":"Old","description":"stale"}` +
		"\n```\nRevised:\n```json\n" +
		`{"type":"task_suggestion","title":"New","description":"fresh"}` +
		"\n```\n"

	sug := ExtractSuggestion(text)
	require.NotNil(t, sug)
	assert.Equal(t, "New", sug.Title)
}

func TestExtractSuggestion_NoBlock(t *testing.T) {
	assert.Nil(t, ExtractSuggestion("No structured output here, just prose."))
}

func TestExtractSuggestion_MalformedInputs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"broken json", `{"type":"task_suggestion","title":`},
		{"wrong discriminant", `{"type":"bug_report","title":"x","description":"y"}`},
		{"missing title", `{"type":"task_suggestion","description":"y"}`},
		{"missing description", `{"type":"task_suggestion","title":"x"}`},
		{"blank title", `{"type":"task_suggestion","title":"  ","description":"y"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Nil(t, ExtractSuggestion("```json\n"+tc.body+"\n```"))
		})
	}
}

func TestExtractSuggestion_CoercesDefaults(t *testing.T) {
	t.Run("absent labels and priority", func(t *testing.T) {
		sug := ExtractSuggestion("```json\n" +
			`{"type":"task_suggestion","title":"x","description":"y"}` +
			"\n```")
		require.NotNil(t, sug)
		assert.Equal(t, []string{}, sug.Labels)
		assert.Equal(t, PriorityMedium, sug.Priority)
	})

	t.Run("malformed labels", func(t *testing.T) {
		sug := ExtractSuggestion("```json\n" +
			`{"type":"task_suggestion","title":"x","description":"y","labels":"not-a-list"}` +
			"\n```")
		require.NotNil(t, sug)
		assert.Equal(t, []string{}, sug.Labels)
	})

	t.Run("invalid priority", func(t *testing.T) {
		sug := ExtractSuggestion("```json\n" +
			`{"type":"task_suggestion","title":"x","description":"y","priority":"urgent"}` +
			"\n```")
		require.NotNil(t, sug)
		assert.Equal(t, PriorityMedium, sug.Priority)
	})

	t.Run("priority case-insensitive", func(t *testing.T) {
		sug := ExtractSuggestion("```json\n" +
			`{"type":"task_suggestion","title":"x","description":"y","priority":"LOW"}` +
			"\n```")
		require.NotNil(t, sug)
		assert.Equal(t, PriorityLow, sug.Priority)
	})
}

func TestExtractSuggestion_UnfencedJSONIgnored(t *testing.T) {
	text := `{"type":"task_suggestion","title":"x","description":"y"}`
	assert.Nil(t, ExtractSuggestion(text))
}
