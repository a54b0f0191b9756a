package typemap

import (
	"sort"

	"github.com/ardanlabs/bindgen/diag"
	"github.com/ardanlabs/bindgen/naming"
	"github.com/ardanlabs/bindgen/parser"
	"github.com/ardanlabs/bindgen/target"
)

type Options struct {
	Prefixes              []string
	Overrides             map[string]string
	ReservedSubstitutions map[string]string
}

// Environment is the native name to target type table, built once per run
// and read-only afterwards.
type Environment struct {
	Dialect  *target.Dialect
	Alias    *Alias
	Prefixes []string
	Reserved *naming.Reserved

	overrides   map[string]string
	diagnostics diag.List
}

// NewEnvironment returns an environment seeded with the dialect's built-in
// table.
func NewEnvironment(d *target.Dialect, alias *Alias, opts Options) *Environment {
	if alias == nil {
		alias = NewAlias(nil)
	}
	return &Environment{
		Dialect:   d,
		Alias:     alias,
		Prefixes:  opts.Prefixes,
		Reserved:  d.Reserved(opts.ReservedSubstitutions),
		overrides: d.Seed(),
	}
}

// Build runs every population step in order: seed, primitive typedefs, user
// overrides, records, enums. A later step overwrites what an earlier step
// set for the same name.
func Build(d *target.Dialect, comp *parser.Compilation, opts Options) (*Environment, diag.List) {
	env := NewEnvironment(d, NewAlias(comp.Typedefs), opts)

	env.AddPrimitiveTypedefs(comp.Typedefs)
	env.AddOverrides(opts.Overrides)
	env.AddRecords(comp.Records)
	env.AddEnums(comp.Enums)

	return env, env.diagnostics
}

// AddPrimitiveTypedefs maps typedefs of primitives straight to the
// primitive's spelling.
func (e *Environment) AddPrimitiveTypedefs(typedefs []*parser.Typedef) {
	for _, td := range typedefs {
		if !td.IsPrimitive() {
			continue
		}
		s, _ := e.Dialect.Primitive(td.Elem.(*parser.Primitive).Kind)
		e.overrides[td.Name] = s
	}
}

// AddOverrides applies user supplied entries in name order.
func (e *Environment) AddOverrides(overrides map[string]string) {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		e.overrides[k] = overrides[k]
	}
}

// AddRecords maps each record, and the typedef naming it, to the target
// record type.
func (e *Environment) AddRecords(records []*parser.Record) {
	for _, r := range records {
		if r.Name == "" {
			continue
		}
		aliased := e.Alias.Lookup(r.Name)
		t := e.Dialect.RecordName(aliased, e.Prefixes)

		e.set(r.Name, t, r.Loc)
		if aliased != r.Name {
			e.set(aliased, t, r.Loc)
		}
	}
}

// AddEnums maps each enum, and the typedef naming it, to the target enum
// type.
func (e *Environment) AddEnums(enums []*parser.Enum) {
	for _, en := range enums {
		if en.Name == "" {
			continue
		}
		t := e.Dialect.EnumName(en.Name, e.Prefixes)

		if aliased := e.Alias.Lookup(en.Name); aliased != en.Name {
			e.set(aliased, t, en.Loc)
		}
		e.set(en.Name, t, en.Loc)
	}
}

func (e *Environment) set(name, t string, loc parser.Location) {
	if prev, ok := e.overrides[name]; ok && prev != t {
		e.diagnostics.Infof(diag.OverrideCollision, loc.String(), "%s was mapped to %s, now %s", name, prev, t)
	}
	e.overrides[name] = t
}

func (e *Environment) Lookup(name string) (string, bool) {
	t, ok := e.overrides[name]
	return t, ok
}
