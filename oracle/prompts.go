package oracle

// Prompt templates are rendered with text/template. Every template receives
// the operation's inputs as JSON-encodable values.
const (
	defaultInstructions = `You are the reasoning component of an autonomous agent.
Always answer with a single JSON object and nothing else.`

	intentPrompt = `Understand the user's intent from the input and the system history.

User input: {{ .input }}
System history:
{{ json .history }}

Describe the intent as a JSON object with exactly these keys:
"goal" (string), "constraints" (object), "success_criteria" (string).`

	planPrompt = `Choose the next step towards the goal.

Intent:
{{ json .intent }}
History:
{{ json .history }}
Available tools:
{{ json .manifest }}

Answer with one JSON object whose "action" is one of:
  {"action": "call_tool", "tool": "<name>", "args": {...}}
  {"action": "spawn_new_core", "core_spec": {"seed": "<sub task>"}}
  {"action": "ask_parent", "prompt": "<question>"}
  {"action": "finish", "spec": <final result>}
Finish as soon as the success criteria are met.`

	observePrompt = `Summarize the observation in the context of the task.

Goal: {{ .intent.goal }}
Observation payload:
{{ json .result }}

Answer with {"summary": "<one concise sentence>"}.`

	reflectPrompt = `Reflect on the progress of the current cycle.

Scratchpad:
{{ json .scratch }}
History:
{{ json .history }}

Answer with a JSON object with the keys "success" (bool), "confidence"
(number between 0 and 1), "issues" (list of strings) and "next_steps"
(list of strings).`
)
