package state

import (
	"errors"
	"fmt"
)

// Entity categories used across the validator, change log, and setters.
const (
	CategoryItem     = "item"
	CategorySkill    = "skill"
	CategoryQuest    = "quest"
	CategoryLocation = "location"
	CategoryNPC      = "npc"
)

// ErrTargetNotFound is returned when a category/id pair does not resolve to
// a live entity.
var ErrTargetNotFound = errors.New("target not found")

// ErrFieldNotAllowed is returned when a field has no typed setter. Only
// whitelisted narrative fields are writable; an arbitrary attribute name
// sourced from oracle output never reaches entity memory.
var ErrFieldNotAllowed = errors.New("field not allowed")

// settableFields enumerates the writable fields per category. fieldRef is
// the single write path and must agree with this table.
var settableFields = map[string][]string{
	CategoryItem:     {"name", "description"},
	CategorySkill:    {"name", "description"},
	CategoryQuest:    {"name", "description"},
	CategoryLocation: {"name", "description", "scene"},
	CategoryNPC:      {"name", "description", "personality", "bio"},
}

// fieldRef resolves a whitelisted field to a pointer into the live entity.
// Unknown fields fail with ErrFieldNotAllowed before the entity is looked
// up, so a power field on a missing target still reports the field error.
func (w *WorldState) fieldRef(category, id, field string) (*string, error) {
	if !fieldAllowed(category, field) {
		return nil, fmt.Errorf("%w: %s.%s", ErrFieldNotAllowed, category, field)
	}

	switch category {
	case CategoryItem:
		it := w.GetItem(id)
		if it == nil {
			break
		}
		switch field {
		case "name":
			return &it.Name, nil
		case "description":
			return &it.Description, nil
		}
	case CategorySkill:
		sk := w.GetSkill(id)
		if sk == nil {
			break
		}
		switch field {
		case "name":
			return &sk.Name, nil
		case "description":
			return &sk.Description, nil
		}
	case CategoryQuest:
		q := w.GetQuest(id)
		if q == nil {
			break
		}
		switch field {
		case "name":
			return &q.Name, nil
		case "description":
			return &q.Description, nil
		}
	case CategoryLocation:
		l := w.GetLocation(id)
		if l == nil {
			break
		}
		switch field {
		case "name":
			return &l.Name, nil
		case "description":
			return &l.Description, nil
		case "scene":
			return &l.Scene, nil
		}
	case CategoryNPC:
		n := w.GetNPC(id)
		if n == nil {
			break
		}
		switch field {
		case "name":
			return &n.Name, nil
		case "description":
			return &n.Description, nil
		case "personality":
			return &n.Personality, nil
		case "bio":
			return &n.Bio, nil
		}
	}

	return nil, fmt.Errorf("%w: %s %q", ErrTargetNotFound, category, id)
}

func fieldAllowed(category, field string) bool {
	for _, f := range settableFields[category] {
		if f == field {
			return true
		}
	}
	return false
}

// EntityExists reports whether a category/id pair resolves to a live entity.
func (w *WorldState) EntityExists(category, id string) bool {
	switch category {
	case CategoryItem:
		return w.GetItem(id) != nil
	case CategorySkill:
		return w.GetSkill(id) != nil
	case CategoryQuest:
		return w.GetQuest(id) != nil
	case CategoryLocation:
		return w.GetLocation(id) != nil
	case CategoryNPC:
		return w.GetNPC(id) != nil
	default:
		return false
	}
}

// GetField reads a whitelisted field's current value.
func (w *WorldState) GetField(category, id, field string) (string, error) {
	ref, err := w.fieldRef(category, id, field)
	if err != nil {
		return "", err
	}
	return *ref, nil
}

// SetField writes a whitelisted field through its typed reference.
func (w *WorldState) SetField(category, id, field, value string) error {
	ref, err := w.fieldRef(category, id, field)
	if err != nil {
		return err
	}
	*ref = value
	return nil
}

// SettableFields returns the whitelisted field names for a category, in
// declaration order.
func SettableFields(category string) []string {
	fields := settableFields[category]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}
