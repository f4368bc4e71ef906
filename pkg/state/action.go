package state

// Requirements gates whether an action can be performed. Zero values mean no
// requirement of that kind.
type Requirements struct {
	Level    int      `json:"level,omitempty"`
	Items    []string `json:"items,omitempty"`
	Skills   []string `json:"skills,omitempty"`
	Location string   `json:"location,omitempty"`
}

// EffectParams carries the operation-specific parameters for one effect tag.
// Values arrive from templates or oracle proposals; appliers read them with
// the typed accessors below and ignore anything malformed.
type EffectParams map[string]any

// Int reads an integer parameter, tolerating JSON's float64 decoding.
func (ep EffectParams) Int(key string, fallback int) int {
	switch v := ep[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// String reads a string parameter.
func (ep EffectParams) String(key string) string {
	if v, ok := ep[key].(string); ok {
		return v
	}
	return ""
}

// Action is a generic, data-driven capability an actor can invoke. Immutable
// once registered in the world's action registry.
type Action struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"action_type"` // e.g. "movement", "social", "crafting"

	Parameters map[string]any `json:"parameters,omitempty"`
	Targets    []string       `json:"targets,omitempty"`

	Requirements Requirements `json:"requirements"`

	// Cost maps a named resource to the amount debited on execution.
	// "stamina" is a percentage-of-max-health proxy.
	Cost map[string]int `json:"cost,omitempty"`

	// Effects maps an effect tag to its parameters. Unknown tags are a
	// deliberate no-op at execution time.
	Effects map[string]EffectParams `json:"effects,omitempty"`

	Duration *int `json:"duration,omitempty"`
	Cooldown *int `json:"cooldown,omitempty"`

	// SuccessProbability is carried data in [0,1]; execution itself is
	// deterministic once validation passes.
	SuccessProbability float64 `json:"success_chance"`

	// OracleProposed marks actions generated by the oracle rather than
	// authored in templates.
	OracleProposed bool `json:"ai_generated,omitempty"`
}
