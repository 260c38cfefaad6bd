// Package shared holds the data schema both the client and the server agree
// on: the set of models, their fields and the rules a record must satisfy.
package shared

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophsync/internal/common"
)

// FieldKind is the JSON type a field value must have.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindBool   FieldKind = "bool"
	KindNumber FieldKind = "number"
)

type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Model describes one synchronized collection.
type Model struct {
	Name     string
	PageSize int
	Fields   []Field
}

var (
	Todo = Model{
		Name:     "todo",
		PageSize: 1000,
		Fields: []Field{
			{Name: "title", Kind: KindString, Required: true},
			{Name: "completed", Kind: KindBool},
		},
	}

	Client = Model{
		Name:     "client",
		PageSize: 100,
		Fields: []Field{
			{Name: "name", Kind: KindString, Required: true},
			{Name: "email", Kind: KindString},
		},
	}
)

// Models returns every model in a stable order.
func Models() []Model {
	return []Model{Todo, Client}
}

// Lookup finds a model by name.
func Lookup(name string) (Model, error) {
	i := slices.IndexFunc(Models(), func(m Model) bool { return m.Name == name })
	if i < 0 {
		return Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return Models()[i], nil
}

func (m Model) field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks record against the model. When partial is true only the
// present fields are checked, which is what updates carry.
func (m Model) Validate(op string, record map[string]any, partial bool) error {
	id, _ := record[common.FieldID].(string)
	fail := func(format string, args ...any) error {
		return &common.ValidationError{Model: m.Name, ID: id, Op: op, Reason: fmt.Sprintf(format, args...)}
	}

	if !partial {
		for _, f := range m.Fields {
			if !f.Required {
				continue
			}
			v, ok := record[f.Name]
			if !ok || v == nil {
				return fail("field %q is required", f.Name)
			}
		}
	}

	for k, v := range record {
		if k == common.FieldDeleted {
			if _, ok := v.(bool); !ok {
				return fail("field %q must be bool", k)
			}
			continue
		}
		f, ok := m.field(k)
		if !ok {
			continue
		}
		if v == nil {
			if f.Required {
				return fail("field %q is required", k)
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			return fail("field %q must be %s", k, f.Kind)
		}
		if f.Required && f.Kind == KindString && v.(string) == "" {
			return fail("field %q must not be empty", k)
		}
	}
	return nil
}

func kindMatches(k FieldKind, v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
	}
	return false
}
