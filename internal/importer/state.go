package importer

import (
	"encoding/json"
	"fmt"
)

// State is the three-valued import status of a node.
type State int

const (
	NotImported State = iota
	Imported
	PartiallyImported
)

func (s State) String() string {
	switch s {
	case Imported:
		return "true"
	case PartiallyImported:
		return "partially"
	default:
		return "false"
	}
}

// MarshalJSON encodes the state as true, false or "partially".
func (s State) MarshalJSON() ([]byte, error) {
	switch s {
	case Imported:
		return []byte("true"), nil
	case PartiallyImported:
		return []byte(`"partially"`), nil
	default:
		return []byte("false"), nil
	}
}

func (s *State) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v {
	case true:
		*s = Imported
	case false:
		*s = NotImported
	case "partially":
		*s = PartiallyImported
	default:
		return fmt.Errorf("invalid import state %s", data)
	}
	return nil
}

// Action is the direction of a selection toggle.
type Action string

const (
	ActionImport Action = "import"
	ActionRemove Action = "remove"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionImport, ActionRemove:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown import action %q", s)
}
