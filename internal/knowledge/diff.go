package knowledge

import (
	"fmt"
	"sort"
)

// FieldChange describes one modified field between two revisions of a type.
type FieldChange struct {
	Name        string `json:"name"`
	Description string `json:"description"` // e.g. "required→optional", "string→int"
	OldType     string `json:"old_type,omitempty"`
	NewType     string `json:"new_type,omitempty"`
}

// AttributeChange describes a serialization-tag change on a field.
type AttributeChange struct {
	Field    string `json:"field"`
	Tag      string `json:"tag"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
}

// TypeDiff is the result of comparing two revisions of the same type.
// Comparing identical revisions yields a diff with all slices empty.
type TypeDiff struct {
	TypeName         string            `json:"type_name"`
	FromCommit       string            `json:"from_commit,omitempty"`
	ToCommit         string            `json:"to_commit,omitempty"`
	AddedFields      []string          `json:"added_fields"`
	RemovedFields    []string          `json:"removed_fields"`
	ModifiedFields   []FieldChange     `json:"modified_fields"`
	AttributeChanges []AttributeChange `json:"attribute_changes"`
}

// IsEmpty reports whether the diff records no change at all.
func (d TypeDiff) IsEmpty() bool {
	return len(d.AddedFields) == 0 && len(d.RemovedFields) == 0 &&
		len(d.ModifiedFields) == 0 && len(d.AttributeChanges) == 0
}

// DiffTypes compares two revisions of a type field by field.
//
// A field present only in `to` is added; present only in `from` is removed.
// A field present in both is modified when its declared type, nullability,
// or requiredness changed. Tag changes are reported separately so callers
// can distinguish shape changes from serialization changes.
func DiffTypes(from, to CodeType) TypeDiff {
	diff := TypeDiff{
		TypeName:         to.Name,
		FromCommit:       from.Provenance.CommitSHA,
		ToCommit:         to.Provenance.CommitSHA,
		AddedFields:      []string{},
		RemovedFields:    []string{},
		ModifiedFields:   []FieldChange{},
		AttributeChanges: []AttributeChange{},
	}

	fromFields := make(map[string]Field, len(from.Fields))
	for _, f := range from.Fields {
		fromFields[f.Name] = f
	}
	toFields := make(map[string]Field, len(to.Fields))
	for _, f := range to.Fields {
		toFields[f.Name] = f
	}

	for _, f := range to.Fields {
		old, exists := fromFields[f.Name]
		if !exists {
			diff.AddedFields = append(diff.AddedFields, f.Name)
			continue
		}
		if change := describeFieldChange(old, f); change != "" {
			diff.ModifiedFields = append(diff.ModifiedFields, FieldChange{
				Name:        f.Name,
				Description: change,
				OldType:     old.DeclaredType,
				NewType:     f.DeclaredType,
			})
		}
		diff.AttributeChanges = append(diff.AttributeChanges, diffTags(f.Name, old, f)...)
	}

	for _, f := range from.Fields {
		if _, exists := toFields[f.Name]; !exists {
			diff.RemovedFields = append(diff.RemovedFields, f.Name)
		}
	}

	sort.Strings(diff.AddedFields)
	sort.Strings(diff.RemovedFields)
	sort.Slice(diff.ModifiedFields, func(i, j int) bool {
		return diff.ModifiedFields[i].Name < diff.ModifiedFields[j].Name
	})

	return diff
}

// describeFieldChange returns a short human-readable description of what
// changed between two revisions of a field, or "" when nothing did.
func describeFieldChange(old, new Field) string {
	switch {
	case old.DeclaredType != new.DeclaredType:
		return fmt.Sprintf("%s→%s", old.DeclaredType, new.DeclaredType)
	case old.Required && !new.Required:
		return "required→optional"
	case !old.Required && new.Required:
		return "optional→required"
	case old.Nullable != new.Nullable:
		if new.Nullable {
			return "non-nullable→nullable"
		}
		return "nullable→non-nullable"
	}
	return ""
}

func diffTags(field string, old, new Field) []AttributeChange {
	oldTags := make(map[string]string, len(old.SerializationTags))
	for _, t := range old.SerializationTags {
		oldTags[t.Name] = t.Value
	}
	newTags := make(map[string]string, len(new.SerializationTags))
	for _, t := range new.SerializationTags {
		newTags[t.Name] = t.Value
	}

	var changes []AttributeChange
	for _, t := range new.SerializationTags {
		oldVal, had := oldTags[t.Name]
		if !had {
			changes = append(changes, AttributeChange{Field: field, Tag: t.Name, NewValue: t.Value})
		} else if oldVal != t.Value {
			changes = append(changes, AttributeChange{Field: field, Tag: t.Name, OldValue: oldVal, NewValue: t.Value})
		}
	}
	for _, t := range old.SerializationTags {
		if _, has := newTags[t.Name]; !has {
			changes = append(changes, AttributeChange{Field: field, Tag: t.Name, OldValue: t.Value})
		}
	}
	return changes
}
