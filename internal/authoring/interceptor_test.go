package authoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdevsl/taskdraft/internal/llm"
)

func observeAll(t *testing.T, ti *ToolInterceptor, evs []llm.StreamEvent) []*Intercept {
	t.Helper()
	var out []*Intercept
	for _, ev := range evs {
		if res := ti.Observe(ev); res != nil {
			out = append(out, res)
		}
	}
	return out
}

func TestInterceptor_QuestionsAcrossDeltas(t *testing.T) {
	ti := NewToolInterceptor(QuestionToolName)

	evs := llm.ToolTurn("tu_1", QuestionToolName,
		`{"questions":[{"header":"Scope",`,
		`"question":"Which auth method?",`,
		`"options":[{"label":"OAuth","description":"standard"},{"label":"SAML"}],`,
		`"multiSelect":false}]}`,
	)

	results := observeAll(t, ti, evs)
	require.Len(t, results, 1)
	res := results[0]

	assert.Equal(t, KindQuestions, res.Kind)
	assert.Equal(t, "tu_1", res.ToolCallID)
	require.Len(t, res.Questions, 1)
	q := res.Questions[0]
	assert.Equal(t, "Scope", q.Header)
	assert.Equal(t, "Which auth method?", q.Question)
	require.Len(t, q.Options, 2)
	assert.Equal(t, "OAuth", q.Options[0].Label)
	assert.False(t, q.MultiSelect)
}

func TestInterceptor_OtherToolPassesThrough(t *testing.T) {
	ti := NewToolInterceptor(QuestionToolName)

	evs := llm.ToolTurn("tu_2", "search_codebase", `{"query":"login"}`)
	results := observeAll(t, ti, evs)
	require.Len(t, results, 1)
	assert.Equal(t, KindOtherTool, results[0].Kind)
	assert.Equal(t, "search_codebase", results[0].ToolName)
	assert.Nil(t, results[0].Questions)
}

func TestInterceptor_MalformedPayloadDegrades(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"truncated json", `{"questions":[{"question":"a"`},
		{"wrong shape", `{"items":[1,2,3]}`},
		{"empty questions", `{"questions":[]}`},
		{"blank question text", `{"questions":[{"question":"  "}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ti := NewToolInterceptor(QuestionToolName)
			results := observeAll(t, ti, llm.ToolTurn("tu_3", QuestionToolName, tc.input))
			require.Len(t, results, 1)
			assert.Equal(t, KindOtherTool, results[0].Kind)
		})
	}
}

func TestInterceptor_TextOnlyTurnYieldsNothing(t *testing.T) {
	ti := NewToolInterceptor(QuestionToolName)
	results := observeAll(t, ti, llm.TextTurn("just", " text"))
	assert.Empty(t, results)
}

func TestInterceptor_StrayStopIgnored(t *testing.T) {
	ti := NewToolInterceptor(QuestionToolName)
	res := ti.Observe(llm.StreamEvent{Type: llm.EventToolUseStop, ToolID: "tu_x"})
	assert.Nil(t, res)
}

func TestApplyBudget(t *testing.T) {
	qs := []Question{
		{Question: "one"},
		{Question: "two"},
		{Question: "three"},
	}

	t.Run("within budget", func(t *testing.T) {
		got := ApplyBudget(qs, 0, 10)
		assert.Len(t, got, 3)
	})

	t.Run("trims preserving order", func(t *testing.T) {
		got := ApplyBudget(qs, 9, 10)
		require.Len(t, got, 1)
		assert.Equal(t, "one", got[0].Question)
	})

	t.Run("exhausted budget suppresses", func(t *testing.T) {
		assert.Nil(t, ApplyBudget(qs, 10, 10))
		assert.Nil(t, ApplyBudget(qs, 11, 10))
	})
}
