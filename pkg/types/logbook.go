package types

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultContentType is the content type assumed for logbook templates and
// entry content when none is given.
const DefaultContentType = "text/html; charset=UTF-8"

// Attribute value types determine how entry attribute values are coerced.
const (
	AttributeText        = "text"
	AttributeNumber      = "number"
	AttributeBoolean     = "boolean"
	AttributeMultiOption = "multioption"
)

// validAttributeTypes is the set of recognized attribute value types.
var validAttributeTypes = map[string]bool{
	AttributeText:        true,
	AttributeNumber:      true,
	AttributeBoolean:     true,
	AttributeMultiOption: true,
}

// Attribute defines one typed field that entries in a logbook may carry.
type Attribute struct {
	Name     string   `json:"name"`              // Unique within the logbook.
	Type     string   `json:"type"`              // One of the Attribute constants.
	Required bool     `json:"required"`          // Whether entries must supply a value.
	Options  []string `json:"options,omitempty"` // Choices for multioption attributes.
}

// Validate checks that the attribute definition is well-formed.
func (a Attribute) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("attribute name must not be empty: %w", ErrInvalidData)
	}
	if !validAttributeTypes[a.Type] {
		return fmt.Errorf("attribute %q has unknown type %q: %w", a.Name, a.Type, ErrInvalidData)
	}
	return nil
}

// Logbook is a named container of entries. Logbooks form a forest via
// ParentID; the parent chain is acyclic and finite.
type Logbook struct {
	LogbookID           string         // UUID v7, generated on creation.
	Name                string         // Human-readable name (required, non-empty).
	Description         string         // Optional free-text description.
	Template            string         // Optional rich-text template for new entries.
	TemplateContentType string         // Content type of Template.
	ParentID            string         // Parent logbook ID; empty for a root logbook.
	Attributes          []Attribute    // Ordered attribute definitions for entries.
	Metadata            map[string]any // Free-form metadata.
	Archived            bool           // Archived logbooks are hidden, never deleted.
	CreatedAt           time.Time      // Timestamp of creation.
	LastChangedAt       *time.Time     // Timestamp of last edit; nil until first edit.
}

// Attribute returns the definition with the given name, or false if the
// logbook does not define it.
func (l *Logbook) Attribute(name string) (Attribute, bool) {
	for _, a := range l.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// ConvertAttribute coerces a raw value to the format the logbook expects for
// the named attribute. Useful when the logbook configuration changed after
// entries were created.
//
// Rules: text values are stringified; number values are parsed as floating
// point; boolean values use truthiness; a single string for a multioption
// attribute is wrapped into a one-element list. A nil value for a
// non-required attribute converts to nil, meaning "omit". An unknown
// attribute name or a failed number parse returns an error wrapping
// ErrValidation.
func (l *Logbook) ConvertAttribute(name string, value any) (any, error) {
	def, ok := l.Attribute(name)
	if !ok {
		return nil, fmt.Errorf("unknown attribute %q: %w", name, ErrValidation)
	}
	if value == nil && !def.Required {
		// Unset values on non-required attributes are omitted, not stored.
		return nil, nil
	}
	switch def.Type {
	case AttributeText:
		return stringify(value), nil
	case AttributeNumber:
		n, err := toFloat(value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %v: %w", name, err, ErrValidation)
		}
		return n, nil
	case AttributeBoolean:
		return truthy(value), nil
	case AttributeMultiOption:
		if s, ok := value.(string); ok {
			return []string{s}, nil
		}
		return value, nil
	}
	return value, nil
}

// ConvertAttributes coerces a full attribute map against the logbook's
// definitions. Values that fail conversion are dropped silently so that as
// much data as possible survives a changed logbook configuration; values
// that convert to nil (unset, non-required) are omitted.
func (l *Logbook) ConvertAttributes(attributes map[string]any) map[string]any {
	converted := make(map[string]any, len(attributes))
	for name, value := range attributes {
		v, err := l.ConvertAttribute(name, value)
		if err != nil || v == nil {
			continue
		}
		converted[name] = v
	}
	return converted
}

// stringify renders any value as a string.
func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// toFloat parses a value as a floating point number.
func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}

// truthy coerces a value to a boolean: false for nil, false, zero numbers,
// empty strings and empty lists; true otherwise.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		return true
	}
}
