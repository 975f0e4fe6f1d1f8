package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formkit/pkg/schema"
)

// Built-in widget identifiers exposed by the registry. Platform builders map
// each name onto their own element constructor.
const (
	WidgetTextField      = "text-field"
	WidgetTextArea       = "text-area"
	WidgetNumber         = "number"
	WidgetSelect         = "select"
	WidgetRadio          = "radio"
	WidgetCheckbox       = "checkbox"
	WidgetDatePicker     = "date-picker"
	WidgetDateTimePicker = "datetime-picker"
	WidgetTimePicker     = "time-picker"
	WidgetFileUpload     = "file-upload"
	WidgetLookup         = "lookup"
	WidgetHidden         = "hidden"
)

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field schema.FieldSpec) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry selects widgets for fields based on registered matchers. Higher
// priority wins; ties fall back to registration order. An empty registry
// never resolves a widget.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in widget matchers
// registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// NewEmptyRegistry constructs a registry without built-ins.
func NewEmptyRegistry() *Registry {
	return &Registry{}
}

// Register adds a widget matcher with the provided name and priority. Higher
// priority values take precedence. Callers should avoid duplicate names; the
// latest registration wins during resolution.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget name for a field.
func (r *Registry) Resolve(field schema.FieldSpec) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, entry := range r.sorted() {
		if entry.match(field) {
			return entry.name, true
		}
	}
	return "", false
}

// Names lists the registered widget names, highest priority first.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	rules := r.sorted()
	names := make([]string, 0, len(rules))
	for _, entry := range rules {
		names = append(names, entry.name)
	}
	return names
}

// sorted snapshots the rules in resolution order.
func (r *Registry) sorted() []rule {
	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	return rules
}

func ofType(types ...schema.FieldType) Matcher {
	return func(field schema.FieldSpec) bool {
		for _, t := range types {
			if field.Type == t {
				return true
			}
		}
		return false
	}
}

func (r *Registry) registerBuiltins() {
	r.Register(WidgetHidden, 100, ofType(schema.FieldTypeHidden))
	// A SELECT backed by references is a lookup as well.
	r.Register(WidgetLookup, 90, func(field schema.FieldSpec) bool {
		return field.Type == schema.FieldTypeForeignKey ||
			(field.Type == schema.FieldTypeSelect && field.References != nil)
	})

	r.Register(WidgetSelect, 70, ofType(schema.FieldTypeSelect))
	r.Register(WidgetRadio, 70, ofType(schema.FieldTypeRadio))
	r.Register(WidgetCheckbox, 70, ofType(schema.FieldTypeCheckbox))

	r.Register(WidgetDatePicker, 60, ofType(schema.FieldTypeDate))
	r.Register(WidgetDateTimePicker, 60, ofType(schema.FieldTypeDateTime))
	r.Register(WidgetTimePicker, 60, ofType(schema.FieldTypeTime))
	r.Register(WidgetFileUpload, 60, ofType(schema.FieldTypeFile))

	r.Register(WidgetTextArea, 50, ofType(schema.FieldTypeTextArea))
	r.Register(WidgetNumber, 40, ofType(schema.FieldTypeNumber))
	r.Register(WidgetTextField, 10, ofType(schema.FieldTypeText))
}
