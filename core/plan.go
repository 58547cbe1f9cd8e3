package core

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the wire tag of a plan action.
type ActionKind string

const (
	ActionCallTool  ActionKind = "call_tool"
	ActionSpawnCore ActionKind = "spawn_new_core"
	ActionAskParent ActionKind = "ask_parent"
	ActionFinish    ActionKind = "finish"
)

// SpawnToolName is the reserved registry entry used by SpawnCore actions.
const SpawnToolName = "spawn_new_core"

// Action is the sealed set of things a plan can ask the agent to do:
// CallTool, SpawnCore, AskParent, Finish and UnknownAction.
type Action interface {
	Kind() ActionKind
	isAction()
}

// CallTool invokes a registered tool.
type CallTool struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// SpawnCore asks the registry's spawn tool to create a child agent.
type SpawnCore struct {
	Spec map[string]any `json:"core_spec"`
}

// AskParent records a question for the embedder. It produces no result.
type AskParent struct {
	Prompt string `json:"prompt"`
}

// Finish terminates the agent with Spec as its result.
type Finish struct {
	Spec any `json:"spec"`
}

// UnknownAction preserves a tag the agent does not recognize. Acting on it
// fails with UnknownActionError.
type UnknownAction struct {
	Name string `json:"-"`
}

func (CallTool) Kind() ActionKind { return ActionCallTool }
func (SpawnCore) Kind() ActionKind { return ActionSpawnCore }
func (AskParent) Kind() ActionKind { return ActionAskParent }
func (Finish) Kind() ActionKind { return ActionFinish }
func (u UnknownAction) Kind() ActionKind { return ActionKind(u.Name) }

func (CallTool) isAction() {}
func (SpawnCore) isAction() {}
func (AskParent) isAction() {}
func (Finish) isAction() {}
func (UnknownAction) isAction() {}

// Plan is the next step chosen by the oracle.
type Plan struct {
	Action Action
	Extra  map[string]any
}

// IsFinish reports whether the plan terminates the agent.
func (p Plan) IsFinish() bool {
	_, ok := p.Action.(Finish)
	return ok
}

var actionFields = map[ActionKind][]string{
	ActionCallTool:  {"tool", "args"},
	ActionSpawnCore: {"core_spec"},
	ActionAskParent: {"prompt"},
	ActionFinish:    {"spec"},
}

// MarshalJSON emits the flat wire form {"action": <kind>, ...fields}.
func (p Plan) MarshalJSON() ([]byte, error) {
	fields := map[string]any{}
	for k, v := range p.Extra {
		fields[k] = v
	}

	if p.Action == nil {
		return json.Marshal(fields)
	}

	body, err := ToMap(p.Action)
	if err != nil {
		return nil, err
	}

	for k, v := range body {
		fields[k] = v
	}

	fields["action"] = string(p.Action.Kind())

	return json.Marshal(fields)
}

// UnmarshalJSON decodes the flat wire form. Unrecognized tags decode into
// UnknownAction so the acting phase can reject them with a typed error.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var head struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	kind := ActionKind(head.Action)

	var (
		action Action
		err    error
	)

	switch kind {
	case ActionCallTool:
		var a CallTool
		err = json.Unmarshal(data, &a)
		action = a
	case ActionSpawnCore:
		var a SpawnCore
		err = json.Unmarshal(data, &a)
		action = a
	case ActionAskParent:
		var a AskParent
		err = json.Unmarshal(data, &a)
		action = a
	case ActionFinish:
		var a Finish
		err = json.Unmarshal(data, &a)
		action = a
	default:
		action = UnknownAction{Name: head.Action}
	}

	if err != nil {
		return fmt.Errorf("decode %q action: %w", head.Action, err)
	}

	extra, err := extraFields(data, append([]string{"action"}, actionFields[kind]...)...)
	if err != nil {
		return err
	}

	p.Action = action
	p.Extra = extra

	return nil
}
