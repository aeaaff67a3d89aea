// Package records writes best-effort submission metadata into an external
// record store whose schema is discovered on every call.
//
// The store's property names, kinds and option domains belong to the
// operator and may change at any time. Nothing here assumes a fixed shape:
// logical fields are resolved through a FieldMapping against a freshly
// retrieved SchemaView, and values are shaped for whatever kind the live
// schema declares.
package records

import (
	"context"
	"slices"
	"time"
)

// Kind is the declared type of a property in the record store.
type Kind string

const (
	KindTitle       Kind = "title"
	KindText        Kind = "text"
	KindNumber      Kind = "number"
	KindSelect      Kind = "select"
	KindMultiSelect Kind = "multi_select"
	KindURL         Kind = "url"
	KindEmail       Kind = "email"
	KindDate        Kind = "date"
	KindCheckbox    Kind = "checkbox"
	KindFiles       Kind = "files"
	KindRelation    Kind = "relation"
	KindUnsupported Kind = "unsupported"
)

// Enumerated reports whether the kind has an option domain.
func (k Kind) Enumerated() bool {
	return k == KindSelect || k == KindMultiSelect
}

// Property is one column of the live schema.
type Property struct {
	Name    string
	Kind    Kind
	Options []string
	// Native is the backend's own type name (e.g. a PostgreSQL enum type).
	Native string
}

// HasOption reports whether name is already part of the option domain.
func (p Property) HasOption(name string) bool {
	return slices.Contains(p.Options, name)
}

// Missing returns the values not yet in the option domain, deduplicated,
// in the order given.
func (p Property) Missing(values []string) []string {
	var out []string
	for _, v := range values {
		if !p.HasOption(v) && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// SchemaView is a snapshot of one target's schema. It is fetched per
// submission and never shared between requests.
type SchemaView struct {
	Target     string
	Properties map[string]Property
}

func (v *SchemaView) Lookup(name string) (Property, bool) {
	if v == nil {
		return Property{}, false
	}
	p, ok := v.Properties[name]
	return p, ok
}

// addOptions records options that were just added to the store so later
// fields in the same submission do not extend the domain again.
func (v *SchemaView) addOptions(name string, options []string) {
	p, ok := v.Properties[name]
	if !ok {
		return
	}
	p.Options = append(slices.Clone(p.Options), options...)
	v.Properties[name] = p
}

// FileRef points at an artifact that is already published.
type FileRef struct {
	Name string
	URL  string
}

// Link is a list of record ids in the same store.
type Link []string

// Value is a property value shaped for a specific Kind. Only the fields
// relevant to Kind are set.
type Value struct {
	Kind Kind
	// Native is copied from the property so backends can cast the value.
	Native    string
	Text      string
	Number    float64
	Bool      bool
	Time      time.Time
	Options   []string
	Files     []FileRef
	Relations []string
}

// Store is the record-store capability the recorder needs.
type Store interface {
	// RetrieveSchema returns the live schema of target.
	RetrieveSchema(ctx context.Context, target string) (*SchemaView, error)
	// ExtendOptions adds missing values to the option domain of prop.
	// prop carries the options observed by the caller.
	ExtendOptions(ctx context.Context, target string, prop Property, missing []string) error
	// CreateRecord creates a record and returns its id.
	CreateRecord(ctx context.Context, target string, props map[string]Value) (string, error)
	// UpdateRecord overwrites the given properties of an existing record.
	UpdateRecord(ctx context.Context, target, recordID string, props map[string]Value) error
}
