package records

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

type extendCall struct {
	Target   string
	Property string
	Observed []string
	Missing  []string
}

type createCall struct {
	Target string
	Props  map[string]Value
}

type updateCall struct {
	Target string
	ID     string
	Props  map[string]Value
}

// fakeStore keeps schemas in memory and records every call.
type fakeStore struct {
	mu      sync.Mutex
	schemas map[string]*SchemaView
	nextID  int

	schemaErr map[string]error
	extendErr error
	createErr map[string]error
	updateErr error
	panicOn   string

	schemaCalls []string
	extends     []extendCall
	creates     []createCall
	updates     []updateCall
}

func newFakeStore(views ...*SchemaView) *fakeStore {
	f := &fakeStore{schemas: map[string]*SchemaView{}, schemaErr: map[string]error{}, createErr: map[string]error{}}
	for _, v := range views {
		f.schemas[v.Target] = v
	}
	return f
}

func (f *fakeStore) RetrieveSchema(_ context.Context, target string) (*SchemaView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "schema" {
		panic("boom")
	}
	f.schemaCalls = append(f.schemaCalls, target)
	if err := f.schemaErr[target]; err != nil {
		return nil, err
	}
	v, ok := f.schemas[target]
	if !ok {
		return nil, fmt.Errorf("target %q not found", target)
	}
	// hand out a copy so the recorder cannot mutate the stored schema
	props := make(map[string]Property, len(v.Properties))
	for k, p := range v.Properties {
		p.Options = slices.Clone(p.Options)
		props[k] = p
	}
	return &SchemaView{Target: v.Target, Properties: props}, nil
}

func (f *fakeStore) ExtendOptions(_ context.Context, target string, prop Property, missing []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extends = append(f.extends, extendCall{Target: target, Property: prop.Name, Observed: slices.Clone(prop.Options), Missing: slices.Clone(missing)})
	if f.extendErr != nil {
		return f.extendErr
	}
	v := f.schemas[target]
	p := v.Properties[prop.Name]
	p.Options = append(p.Options, missing...)
	v.Properties[prop.Name] = p
	return nil
}

func (f *fakeStore) CreateRecord(_ context.Context, target string, props map[string]Value) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn == "create" {
		panic("create exploded")
	}
	f.creates = append(f.creates, createCall{Target: target, Props: maps.Clone(props)})
	if err := f.createErr[target]; err != nil {
		return "", err
	}
	f.nextID++
	return fmt.Sprintf("%s-%d", target, f.nextID), nil
}

func (f *fakeStore) UpdateRecord(_ context.Context, target, id string, props map[string]Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{Target: target, ID: id, Props: maps.Clone(props)})
	return f.updateErr
}
