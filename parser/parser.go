// Package parser is a best-effort C header parser. It understands enough of
// the preprocessor and of C declarations to hand the generator typedefs,
// enums, records and function prototypes with their source locations.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
)

type Options struct {
	// IncludeFolders are searched for "quoted" and <angled> includes;
	// declarations found there are part of the output.
	IncludeFolders []string

	// SystemIncludeFolders are searched for <angled> includes only; their
	// declarations are used to resolve types but are never emitted.
	SystemIncludeFolders []string

	// Defines are NAME or NAME=VALUE.
	Defines []string

	// ReadFile replaces os.ReadFile, mainly for tests.
	ReadFile func(string) ([]byte, error)
}

type parser struct {
	opts    Options
	read    func(string) ([]byte, error)
	comp    *Compilation
	macros  map[string]macro
	visited map[string]bool
	system  int

	named      map[string]Type    // typedef names and squashed records/enums
	records    map[string]*Record // "struct X" / "union X"
	enumTags   map[string]*Enum
	enumConsts map[string]int64
	builtins   map[string]Type
	external   map[string]*Record
	inComp     map[any]bool
	functions  map[string]*Function
}

func newParser(opts Options) *parser {
	p := &parser{
		opts:       opts,
		read:       opts.ReadFile,
		comp:       &Compilation{},
		macros:     make(map[string]macro),
		visited:    make(map[string]bool),
		named:      make(map[string]Type),
		records:    make(map[string]*Record),
		enumTags:   make(map[string]*Enum),
		enumConsts: make(map[string]int64),
		builtins:   builtinTypes(),
		external:   make(map[string]*Record),
		inComp:     make(map[any]bool),
		functions:  make(map[string]*Function),
	}

	if p.read == nil {
		p.read = os.ReadFile
	}

	for _, d := range opts.Defines {
		name, value, _ := strings.Cut(d, "=")
		p.macros[strings.TrimSpace(name)] = macro{body: strings.TrimSpace(value)}
	}

	return p
}

// ParseFiles parses every header in paths, following includes. It fails only
// when one of paths cannot be read; everything else becomes a diagnostic.
func ParseFiles(paths []string, opts Options) (*Compilation, error) {
	p := newParser(opts)

	for _, path := range paths {
		path = filepath.Clean(path)
		if p.visited[path] {
			continue
		}

		data, err := p.read(path)
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}

		p.processFile(path, data)
	}

	return p.comp, nil
}

// Parse parses one in-memory header. path is only used for locations and
// for resolving relative includes.
func Parse(path, content string, opts Options) (*Compilation, error) {
	p := newParser(opts)
	p.processFile(filepath.Clean(path), []byte(content))

	return p.comp, nil
}

func (p *parser) parseChunk(path, text string, firstLine int) {
	if strings.TrimSpace(text) == "" {
		return
	}

	toks := p.expand(tokenize(text, firstLine), 0, make(map[string]bool))
	for _, stmt := range splitStatements(toks) {
		p.statement(path, stmt)
	}
}

func (p *parser) statement(path string, toks []token) {
	loc := Location{Path: path, Line: toks[0].line}
	s := &stream{toks: toks}

	isTypedef := false
	if s.peek().isIdent("typedef") {
		isTypedef = true
		s.next()
	}

	spec, err := p.specifiers(s, loc)
	if err != nil {
		p.parseError(loc, toks, err)
		return
	}
	if spec.ref != nil && (isTypedef || s.eof()) {
		spec.forward = spec.ref
	}

	if s.eof() {
		p.registerDefined(spec, loc)
		return
	}

	first := true
	for {
		name, wrap, err := p.declarator(s, loc)
		if err != nil {
			p.parseError(loc, toks, err)
			return
		}
		t := wrap(spec.typ)

		switch {
		case isTypedef:
			if first && spec.anonymous && t == spec.typ {
				p.squash(spec, name, loc)
			} else {
				if first {
					p.registerDefined(spec, loc)
				}
				p.addTypedef(&Typedef{Name: name, Elem: t, Loc: loc})
			}

		default:
			if first {
				p.registerDefined(spec, loc)
			}
			if fn, ok := t.(*FunctionType); ok && name != "" && !spec.static {
				p.addFunction(&Function{
					Name:     name,
					Return:   fn.Return,
					Params:   fn.Params,
					Variadic: fn.Variadic,
					Loc:      loc,
				})
			}
		}
		first = false

		if s.accept("=") {
			s.skipUntil(",")
		}
		if !s.accept(",") {
			break
		}
	}

	if !s.eof() {
		p.parseError(loc, toks, fmt.Errorf("unexpected %q", s.peek().text))
	}
}

// squash names an anonymous struct, union or enum after the typedef that
// introduces it, instead of recording the typedef.
func (p *parser) squash(spec specResult, name string, loc Location) {
	switch d := spec.defined.(type) {
	case *Record:
		d.Name = name
		p.records[recordKey(d.Kind, name)] = d
	case *Enum:
		d.Name = name
		p.enumTags[name] = d
	}
	p.named[name] = spec.defined
	p.registerDefined(spec, loc)
}

func (p *parser) registerDefined(spec specResult, loc Location) {
	switch d := spec.defined.(type) {
	case *Record:
		if d.Name != "" {
			p.addRecord(d, loc)
		}
	case *Enum:
		p.addEnum(d)
	}
	if spec.forward != nil {
		p.addRecord(spec.forward, loc)
	}
}

func (p *parser) addTypedef(t *Typedef) {
	p.named[t.Name] = t
	if p.system > 0 {
		return
	}
	p.comp.Typedefs = append(p.comp.Typedefs, t)
}

func (p *parser) addEnum(e *Enum) {
	if p.system > 0 || p.inComp[e] {
		return
	}
	p.inComp[e] = true
	p.comp.Enums = append(p.comp.Enums, e)
}

func (p *parser) addRecord(r *Record, loc Location) {
	if r.Loc.Path == "" || r.Complete {
		r.Loc = loc
	}
	if p.system > 0 || p.inComp[r] {
		return
	}
	p.inComp[r] = true
	p.comp.Records = append(p.comp.Records, r)
}

// addFunction records a prototype. A name declared again keeps its first
// declaration; a differing signature is an error since only one can be
// bound.
func (p *parser) addFunction(f *Function) {
	if p.system > 0 {
		return
	}
	if prev, ok := p.functions[f.Name]; ok {
		if signature(prev) != signature(f) {
			p.comp.Diagnostics.Errorf(diag.DuplicateFunction, f.Loc.String(),
				"%s redeclared as %s; keeping %s from %s", f.Name, signature(f), signature(prev), prev.Loc)
		}
		return
	}
	p.functions[f.Name] = f
	if f.Variadic {
		p.comp.Diagnostics.Infof(diag.VariadicFunction, f.Loc.String(),
			"%s is variadic; the trailing arguments are not bound", f.Name)
	}
	p.comp.Functions = append(p.comp.Functions, f)
}

func signature(f *Function) string {
	params := make([]string, len(f.Params))
	for i, prm := range f.Params {
		params[i] = prm.Type.DisplayName()
	}
	if f.Variadic {
		params = append(params, "...")
	}
	return f.Return.DisplayName() + "(" + strings.Join(params, ", ") + ")"
}

func (p *parser) parseError(loc Location, toks []token, err error) {
	p.comp.Diagnostics.Warnf(diag.ParseError, loc.String(), "skipping declaration %q: %v", joinTokens(toks, 12), err)
}

// splitStatements cuts the token list at top-level semicolons. Function
// bodies are dropped and extern "C" blocks are flattened.
func splitStatements(toks []token) [][]token {
	var stmts [][]token
	var cur []token
	depth := 0

	for i := 0; i < len(toks); i++ {
		t := toks[i]

		if depth == 0 {
			switch {
			case t.isIdent("extern") && i+2 < len(toks) && toks[i+1].kind == tokString && toks[i+2].is("{"):
				i += 2
				continue

			case t.is("}"):
				continue

			case t.is(";"):
				if len(cur) > 0 {
					stmts = append(stmts, cur)
				}
				cur = nil
				continue

			case t.is("{") && len(cur) > 0 && cur[len(cur)-1].is(")"):
				i = skipBalanced(toks, i) - 1
				cur = nil
				continue
			}
		}

		switch {
		case t.is("{"):
			depth++
		case t.is("}"):
			depth--
		}
		cur = append(cur, t)
	}

	return stmts
}

// skipBalanced returns the index just past the bracket group opening at i.
func skipBalanced(toks []token, i int) int {
	if i >= len(toks) {
		return i
	}

	open := toks[i].text
	closer := map[string]string{"(": ")", "[": "]", "{": "}"}[open]
	if closer == "" {
		return i + 1
	}

	depth := 0
	for j := i; j < len(toks); j++ {
		switch {
		case toks[j].is(open):
			depth++
		case toks[j].is(closer):
			depth--
			if depth == 0 {
				return j + 1
			}
		}
	}

	return len(toks)
}

var attributeIdents = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true, "__asm__": true, "__asm": true,
	"_Alignas": true, "alignas": true, "__pragma": true, "_Pragma": true, "__has_include": true,
}

var noiseIdents = map[string]bool{
	"inline": true, "__inline": true, "__inline__": true, "__forceinline": true,
	"restrict": true, "__restrict": true, "__restrict__": true,
	"__cdecl": true, "__stdcall": true, "__fastcall": true, "__vectorcall": true,
	"__extension__": true, "register": true, "_Noreturn": true, "__unaligned": true,
}

// expand replaces macros, substituting the arguments of function-like
// invocations, and strips compiler attributes from a token list. A
// function-like macro named without arguments is dropped.
func (p *parser) expand(toks []token, depth int, active map[string]bool) []token {
	out := make([]token, 0, len(toks))

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent {
			out = append(out, t)
			continue
		}

		if attributeIdents[t.text] {
			i = skipBalanced(toks, i+1) - 1
			continue
		}
		if noiseIdents[t.text] {
			continue
		}

		m, ok := p.macros[t.text]
		if !ok || active[t.text] || depth > 8 {
			out = append(out, t)
			continue
		}

		if m.funcLike {
			if i+1 >= len(toks) || !toks[i+1].is("(") {
				continue
			}

			end := skipBalanced(toks, i+1)
			if !toks[end-1].is(")") || end-1 == i+1 {
				out = append(out, toks[i:end]...)
				i = end - 1
				continue
			}

			raw := splitArgs(toks[i+2 : end-1])
			expanded := make([][]token, len(raw))
			for k, a := range raw {
				expanded[k] = p.expand(a, depth+1, active)
			}

			body, ok := m.substitute(raw, expanded, t.line)
			if !ok {
				// Left in place: whatever uses it fails to parse or evaluate.
				out = append(out, toks[i:end]...)
				i = end - 1
				continue
			}
			i = end - 1

			active[t.text] = true
			out = append(out, p.expand(body, depth+1, active)...)
			delete(active, t.text)
			continue
		}

		body := tokenize(m.body, t.line)
		for k := range body {
			body[k].line = t.line
		}
		active[t.text] = true
		out = append(out, p.expand(body, depth+1, active)...)
		delete(active, t.text)
	}

	return out
}

func joinTokens(toks []token, limit int) string {
	var b strings.Builder
	for i, t := range toks {
		if i == limit {
			b.WriteString(" ...")
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

func recordKey(kind RecordKind, name string) string {
	if kind == Union {
		return "union " + name
	}
	return "struct " + name
}

func builtinTypes() map[string]Type {
	td := func(name string, k PrimitiveKind) Type {
		return &Typedef{Name: name, Elem: &Primitive{Kind: k}}
	}
	vaList := &Typedef{Name: "va_list", Elem: &Array{Elem: &Record{Name: "__va_list_tag"}, Size: 1}}

	return map[string]Type{
		"bool":              &Primitive{Kind: Bool},
		"_Bool":             &Primitive{Kind: Bool},
		"int8_t":            td("int8_t", SignedChar),
		"uint8_t":           td("uint8_t", UnsignedChar),
		"int16_t":           td("int16_t", Short),
		"uint16_t":          td("uint16_t", UnsignedShort),
		"int32_t":           td("int32_t", Int),
		"uint32_t":          td("uint32_t", UnsignedInt),
		"int64_t":           td("int64_t", LongLong),
		"uint64_t":          td("uint64_t", UnsignedLongLong),
		"size_t":            td("size_t", UnsignedLong),
		"ssize_t":           td("ssize_t", Long),
		"intptr_t":          td("intptr_t", Long),
		"uintptr_t":         td("uintptr_t", UnsignedLong),
		"ptrdiff_t":         td("ptrdiff_t", Long),
		"wchar_t":           td("wchar_t", WChar),
		"va_list":           vaList,
		"__builtin_va_list": vaList,
	}
}
