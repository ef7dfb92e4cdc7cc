// Package prompts holds the authoring prompt pack: the system prompt and the
// clarifying-question tool copy. Defaults are compiled in; a YAML file can
// override any field.
package prompts

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentdevsl/taskdraft/internal/llm"
)

const defaultSystemPrompt = `You are a collaborative task-authoring assistant. You help an operator turn a
rough idea into a well-scoped work item through conversation.

When key details are genuinely ambiguous, call the ask_clarifying_questions
tool instead of guessing. Ask only questions whose answers change the task.

When you have enough information, end your reply with the final task inside a
fenced code block:

` + "```json" + `
{"type":"task_suggestion","title":"...","description":"...","labels":["..."],"priority":"high|medium|low"}
` + "```" + `

The title is a short imperative summary. The description states the goal,
context and acceptance criteria. Priority defaults to medium.`

const defaultQuestionToolDescription = `Ask the operator clarifying questions about the task being authored. Use this
only when an answer would materially change the task. Each question may offer
options; multiSelect allows choosing several.`

// questionToolInputSchema is the JSON Schema for the question tool's input.
const questionToolInputSchema = `{
  "type": "object",
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "header": {"type": "string"},
          "question": {"type": "string"},
          "options": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "label": {"type": "string"},
                "description": {"type": "string"}
              },
              "required": ["label"]
            }
          },
          "multiSelect": {"type": "boolean"}
        },
        "required": ["question"]
      }
    }
  },
  "required": ["questions"]
}`

// Pack is the loaded prompt configuration.
type Pack struct {
	SystemPrompt            string `yaml:"system_prompt"`
	QuestionToolDescription string `yaml:"question_tool_description"`
}

// Default returns the compiled-in prompt pack.
func Default() *Pack {
	return &Pack{
		SystemPrompt:            defaultSystemPrompt,
		QuestionToolDescription: defaultQuestionToolDescription,
	}
}

// Load returns the default pack overridden by the YAML file at path. An empty
// path returns the defaults unchanged.
func Load(path string) (*Pack, error) {
	p := Default()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt pack: %w", err)
	}
	var override Pack
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse prompt pack: %w", err)
	}
	if override.SystemPrompt != "" {
		p.SystemPrompt = override.SystemPrompt
	}
	if override.QuestionToolDescription != "" {
		p.QuestionToolDescription = override.QuestionToolDescription
	}
	return p, nil
}

// QuestionTool returns the clarifying-question tool schema for the model.
func (p *Pack) QuestionTool(name string) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        name,
		Description: p.QuestionToolDescription,
		InputSchema: json.RawMessage(questionToolInputSchema),
	}
}
