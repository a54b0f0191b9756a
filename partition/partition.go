// Package partition decides which output file every retained declaration
// lands in and resolves it into target names and types.
package partition

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
	"github.com/ardanlabs/bindgen/naming"
	"github.com/ardanlabs/bindgen/parser"
	"github.com/ardanlabs/bindgen/typemap"
)

type Options struct {
	Module     string
	SingleFile bool

	ExcludeFunctions    []string // substrings
	ExcludedFiles       []string // filename or folder/filename, no extension
	ExcludedFromWrapper []string

	StripEnumPrefix bool
}

// IsFunctionExcluded reports whether name contains any block-list entry.
func (o Options) IsFunctionExcluded(name string) bool {
	for _, s := range o.ExcludeFunctions {
		if s != "" && strings.Contains(name, s) {
			return true
		}
	}
	return false
}

func (o Options) IsFileExcluded(filename, folder string) bool {
	return matchFile(o.ExcludedFiles, filename, folder)
}

func (o Options) IsFileExcludedFromWrapper(filename, folder string) bool {
	return matchFile(o.ExcludedFromWrapper, filename, folder)
}

func matchFile(list []string, filename, folder string) bool {
	return slices.Contains(list, filename) || slices.Contains(list, path.Join(folder, filename))
}

// =============================================================================

type Member struct {
	Native string
	Name   string
	Value  int64
}

type Enum struct {
	Native   *parser.Enum
	Name     string
	Members  []Member
	Explicit bool // every member carries its value
}

type Field struct {
	Native string
	Name   string
	Type   string
}

type Record struct {
	Native *parser.Record
	Name   string
	Union  bool
	Fields []Field
}

type Param struct {
	Name       string // native name, escaped
	TargetName string
	NativeType string
	Type       string
}

// Function is a function resolved for emission. Return is empty when the
// native function returns void.
type Function struct {
	Name         string
	TargetName   string
	NativeReturn string
	Return       string
	Params       []Param
	Wrapped      bool // also goes to the wrapper file
}

// Group is one output unit. Declarations keep their discovery order.
type Group struct {
	Filename  string
	Folder    string
	Enums     []*Enum
	Records   []*Record
	Functions []*Function
}

// Empty reports whether the group has nothing to emit. Groups created only
// by typedefs are empty.
func (g *Group) Empty() bool {
	return len(g.Enums)+len(g.Records)+len(g.Functions) == 0
}

// Section is the folder/filename label of the group.
func (g *Group) Section() string {
	return path.Join(g.Folder, g.Filename)
}

type Result struct {
	Groups      []*Group
	Headers     []string // headers that contributed a retained declaration
	Diagnostics diag.List
}

// =============================================================================

type partitioner struct {
	env    *typemap.Environment
	mapper *typemap.Mapper
	opts   Options

	groups  []*Group
	headers []string
	seen    map[string]bool
	diags   diag.List
}

// Partition groups the declarations of comp and resolves them against env.
// Typedefs are looked at first so that they decide the group order, then
// enums, functions and records.
func Partition(comp *parser.Compilation, env *typemap.Environment, opts Options) *Result {
	p := partitioner{
		env:    env,
		mapper: typemap.NewMapper(env),
		opts:   opts,
		seen:   make(map[string]bool),
	}

	for _, td := range comp.Typedefs {
		p.group(td.Loc)
	}

	for _, e := range comp.Enums {
		if e.Name == "" {
			p.diags.Warnf(diag.NamelessEnum, e.Loc.String(), "skipping nameless enum with %d items", len(e.Items))
			continue
		}
		if g := p.group(e.Loc); g != nil {
			g.Enums = append(g.Enums, p.enum(e))
		}
	}

	for _, f := range comp.Functions {
		if opts.IsFunctionExcluded(f.Name) {
			continue
		}
		if g := p.group(f.Loc); g != nil {
			g.Functions = append(g.Functions, p.function(f))
		}
	}

	for _, r := range comp.Records {
		if g := p.group(r.Loc); g != nil {
			g.Records = append(g.Records, p.record(r))
		}
	}

	p.diags.Append(p.mapper.Diagnostics())

	return &Result{
		Groups:      p.groups,
		Headers:     p.headers,
		Diagnostics: p.diags,
	}
}

// group returns the group for a declaration found at loc, creating it on
// first sight. It returns nil when the declaration's file is excluded.
func (p *partitioner) group(loc parser.Location) *Group {
	filename, folder := loc.Filename(), loc.Folder()
	if p.opts.IsFileExcluded(filename, folder) {
		return nil
	}

	if loc.Path != "" && !p.seen[loc.Path] {
		p.seen[loc.Path] = true
		p.headers = append(p.headers, loc.Path)
	}

	if p.opts.SingleFile {
		if len(p.groups) == 0 {
			p.groups = append(p.groups, &Group{})
		}
		return p.groups[0]
	}

	for _, g := range p.groups {
		if g.Filename == filename && g.Folder == folder {
			return g
		}
	}

	g := Group{Filename: filename, Folder: folder}
	p.groups = append(p.groups, &g)
	return &g
}

func (p *partitioner) escape(name, span string) string {
	s, ok := p.env.Reserved.Escape(name)
	if !ok {
		p.diags.Warnf(diag.ReservedWord, span, "%s is reserved in %s, using %s", name, p.env.Dialect.Name, s)
	}
	return s
}

func (p *partitioner) enum(e *parser.Enum) *Enum {
	span := e.Loc.String()

	out := Enum{
		Native:   e,
		Name:     p.env.Dialect.EnumName(e.Name, p.env.Prefixes),
		Explicit: e.HasExplicitValue(),
	}

	if len(e.Items) == 0 {
		p.diags.Warnf(diag.EmptyEnum, span, "enum %s has no members", e.Name)
		return &out
	}

	names := make([]string, len(e.Items))
	for i, it := range e.Items {
		names[i] = it.Name
	}
	if p.opts.StripEnumPrefix {
		names = naming.StripCommonPrefix(names)
	}

	out.Members = make([]Member, len(e.Items))
	for i, it := range e.Items {
		name, ok := p.env.Dialect.EnumMember(names[i], p.env.Reserved)
		if !ok {
			p.diags.Warnf(diag.ReservedWord, span, "enum member %s is reserved in %s, using %s", it.Name, p.env.Dialect.Name, name)
		}
		out.Members[i] = Member{Native: it.Name, Name: name, Value: it.Value}
	}

	return &out
}

func (p *partitioner) record(r *parser.Record) *Record {
	span := r.Loc.String()

	name, ok := p.env.Lookup(r.Name)
	if !ok {
		name = p.env.Dialect.RecordName(p.env.Alias.Lookup(r.Name), p.env.Prefixes)
	}

	out := Record{
		Native: r,
		Name:   name,
		Union:  r.Kind == parser.Union,
		Fields: make([]Field, 0, len(r.Fields)),
	}

	for _, f := range r.Fields {
		out.Fields = append(out.Fields, Field{
			Native: f.Name,
			Name:   p.env.Dialect.Field(f.Name, p.env.Reserved),
			Type:   p.mapper.Map(f.Type, span),
		})
	}

	return &out
}

func (p *partitioner) function(f *parser.Function) *Function {
	span := f.Loc.String()
	d := p.env.Dialect

	out := Function{
		Name:       f.Name,
		TargetName: d.FunctionName(f.Name, p.env.Prefixes, p.opts.Module),
		Params:     make([]Param, len(f.Params)),
		Wrapped:    !p.opts.IsFileExcludedFromWrapper(f.Loc.Filename(), f.Loc.Folder()),
	}

	if ret := f.Return.DisplayName(); ret != "void" {
		out.NativeReturn = ret
		out.Return = p.mapper.Map(f.Return, span)
	}

	for i, prm := range f.Params {
		native := prm.Name
		if native == "" {
			native = fmt.Sprintf("arg%d", i)
		}

		out.Params[i] = Param{
			Name:       p.escape(native, span),
			TargetName: p.escape(naming.SnakeCase(naming.StripPrefix(p.env.Prefixes, native)), span),
			NativeType: prm.Type.DisplayName(),
			Type:       p.mapper.Map(prm.Type, span),
		}
	}

	return &out
}
