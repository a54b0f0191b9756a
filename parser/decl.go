package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
)

var (
	errMissingType  = errors.New("missing type specifier")
	errMissingValue = errors.New("missing value")
)

// stream is a cursor over the tokens of one statement.
type stream struct {
	toks []token
	pos  int
}

func (s *stream) eof() bool { return s.pos >= len(s.toks) }

func (s *stream) peek() token {
	if s.eof() {
		return token{kind: tokPunct}
	}
	return s.toks[s.pos]
}

func (s *stream) peekAt(n int) token {
	if s.pos+n >= len(s.toks) {
		return token{kind: tokPunct}
	}
	return s.toks[s.pos+n]
}

func (s *stream) next() token {
	t := s.peek()
	s.pos++
	return t
}

func (s *stream) accept(p string) bool {
	if s.peek().is(p) {
		s.pos++
		return true
	}
	return false
}

func (s *stream) expect(p string) error {
	if !s.accept(p) {
		if s.eof() {
			return fmt.Errorf("expected %q, got end of declaration", p)
		}
		return fmt.Errorf("expected %q, got %q", p, s.peek().text)
	}
	return nil
}

// skipUntil advances to the next top-level occurrence of p without
// consuming it.
func (s *stream) skipUntil(p string) {
	for !s.eof() && !s.peek().is(p) {
		switch t := s.peek(); {
		case t.is("("), t.is("["), t.is("{"):
			s.pos = skipBalanced(s.toks, s.pos)
		default:
			s.pos++
		}
	}
}

// group consumes a bracket group and returns the tokens inside it.
func (s *stream) group() []token {
	start := s.pos
	end := skipBalanced(s.toks, start)
	s.pos = end
	if end-start < 2 {
		return nil
	}
	return s.toks[start+1 : end-1]
}

// splitTop splits toks at top-level occurrences of sep.
func splitTop(toks []token, sep string) [][]token {
	var parts [][]token
	depth, start := 0, 0

	for i, t := range toks {
		switch {
		case t.is("("), t.is("["), t.is("{"):
			depth++
		case t.is(")"), t.is("]"), t.is("}"):
			depth--
		case depth == 0 && t.is(sep):
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}

	return parts
}

// specResult is what the declaration specifiers of a statement produced.
type specResult struct {
	typ       Type
	defined   Type    // record or enum given a body here
	ref       *Record // record named without a body
	forward   *Record // ref when the statement declares it
	anonymous bool
	static    bool
}

var primitiveWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true, "_Bool": true,
}

var storageWords = map[string]bool{
	"extern": true, "static": true, "auto": true, "thread_local": true, "_Thread_local": true,
}

func (p *parser) specifiers(s *stream, loc Location) (specResult, error) {
	var res specResult
	var words []string
	var isConst, isVolatile bool

loop:
	for !s.eof() {
		t := s.peek()
		if t.kind != tokIdent {
			break
		}

		switch {
		case t.text == "const":
			isConst = true
			s.next()

		case t.text == "volatile":
			isVolatile = true
			s.next()

		case storageWords[t.text]:
			if t.text == "static" {
				res.static = true
			}
			s.next()

		case primitiveWords[t.text]:
			if res.typ != nil {
				return res, fmt.Errorf("unexpected %q after type", t.text)
			}
			words = append(words, t.text)
			s.next()

		case t.text == "struct" || t.text == "union":
			if res.typ != nil || len(words) > 0 {
				break loop
			}
			s.next()
			kind := Struct
			if t.text == "union" {
				kind = Union
			}
			if err := p.recordSpecifier(s, loc, kind, &res); err != nil {
				return res, err
			}

		case t.text == "enum":
			if res.typ != nil || len(words) > 0 {
				break loop
			}
			s.next()
			if err := p.enumSpecifier(s, loc, &res); err != nil {
				return res, err
			}

		default:
			// Identifiers followed by another identifier in specifier
			// position are undefined export or calling convention macros.
			if res.typ != nil || len(words) > 0 {
				if s.peekAt(1).kind == tokIdent {
					s.next()
					continue
				}
				break loop
			}
			if !p.knownType(t.text) && p.startsType(s.peekAt(1)) {
				s.next()
				continue
			}
			res.typ = p.lookupName(t.text)
			s.next()
		}
	}

	if res.typ == nil {
		if len(words) == 0 {
			return res, errMissingType
		}
		res.typ = &Primitive{Kind: primitiveFromWords(words)}
	}

	if isVolatile {
		res.typ = &Qualified{Qualifier: Volatile, Elem: res.typ}
	}
	if isConst {
		res.typ = &Qualified{Qualifier: Const, Elem: res.typ}
	}

	return res, nil
}

func (p *parser) knownType(name string) bool {
	_, named := p.named[name]
	_, builtin := p.builtins[name]
	return named || builtin
}

func (p *parser) startsType(t token) bool {
	if t.kind != tokIdent {
		return false
	}
	switch t.text {
	case "struct", "union", "enum", "const", "volatile":
		return true
	}
	return primitiveWords[t.text] || storageWords[t.text] || p.knownType(t.text)
}

// lookupName resolves a type name. Names nobody declared become opaque
// records so that their uses still map to something.
func (p *parser) lookupName(name string) Type {
	if t, ok := p.named[name]; ok {
		return t
	}
	if t, ok := p.builtins[name]; ok {
		return t
	}
	if r, ok := p.external[name]; ok {
		return r
	}

	r := &Record{Name: name}
	p.external[name] = r
	return r
}

func (p *parser) recordSpecifier(s *stream, loc Location, kind RecordKind, res *specResult) error {
	name := ""
	if s.peek().kind == tokIdent {
		name = s.next().text
	}

	if !s.peek().is("{") {
		if name == "" {
			return fmt.Errorf("%s without name or body", kindWord(kind))
		}
		key := recordKey(kind, name)
		r, ok := p.records[key]
		if !ok {
			r = &Record{Name: name, Kind: kind, Loc: loc}
			p.records[key] = r
		}
		res.typ = r
		res.ref = r
		return nil
	}

	var r *Record
	if name != "" {
		key := recordKey(kind, name)
		if prev, ok := p.records[key]; ok && !prev.Complete {
			r = prev
		} else {
			r = &Record{Name: name, Kind: kind}
			p.records[key] = r
		}
	} else {
		r = &Record{Kind: kind}
		res.anonymous = true
	}

	fields, err := p.fields(s.group(), loc)
	if err != nil {
		return err
	}
	r.Fields = fields
	r.Complete = true
	r.Loc = loc

	res.typ = r
	res.defined = r
	return nil
}

func (p *parser) fields(body []token, loc Location) ([]Field, error) {
	var fields []Field

	for _, member := range splitTop(body, ";") {
		if len(member) == 0 {
			continue
		}
		mloc := Location{Path: loc.Path, Line: member[0].line}
		s := &stream{toks: member}

		spec, err := p.specifiers(s, mloc)
		if err != nil {
			return nil, fmt.Errorf("field: %w", err)
		}

		if s.eof() {
			// An anonymous struct or union member contributes its fields.
			if r, ok := spec.defined.(*Record); ok && spec.anonymous {
				fields = append(fields, r.Fields...)
			}
			if spec.defined != nil && !spec.anonymous {
				p.registerDefined(spec, mloc)
			}
			continue
		}

		if spec.defined != nil && !spec.anonymous {
			p.registerDefined(spec, mloc)
		}

		for {
			name, wrap, err := p.declarator(s, mloc)
			if err != nil {
				return nil, fmt.Errorf("field: %w", err)
			}
			if s.accept(":") {
				s.skipUntil(",")
			}
			fields = append(fields, Field{Name: name, Type: wrap(spec.typ)})

			if !s.accept(",") {
				break
			}
		}

		if !s.eof() {
			return nil, fmt.Errorf("field: unexpected %q", s.peek().text)
		}
	}

	return fields, nil
}

func (p *parser) enumSpecifier(s *stream, loc Location, res *specResult) error {
	name := ""
	if s.peek().kind == tokIdent {
		name = s.next().text
	}

	// C23 fixed underlying type.
	if s.accept(":") {
		for !s.eof() && !s.peek().is("{") && !s.peek().is(";") {
			if s.peek().kind != tokIdent {
				break
			}
			s.next()
		}
	}

	if !s.peek().is("{") {
		if name == "" {
			return errors.New("enum without name or body")
		}
		e, ok := p.enumTags[name]
		if !ok {
			e = &Enum{Name: name, Loc: loc}
			p.enumTags[name] = e
		}
		res.typ = e
		return nil
	}

	e := &Enum{Name: name, Loc: loc}
	if name != "" {
		if prev, ok := p.enumTags[name]; ok && len(prev.Items) == 0 {
			e = prev
			e.Loc = loc
		}
		p.enumTags[name] = e
	} else {
		res.anonymous = true
	}

	e.Items = p.enumItems(s.group(), loc)

	res.typ = e
	res.defined = e
	return nil
}

func (p *parser) enumItems(body []token, loc Location) []EnumItem {
	var items []EnumItem
	next := int64(0)

	for _, part := range splitTop(body, ",") {
		if len(part) == 0 || part[0].kind != tokIdent {
			continue
		}

		item := EnumItem{Name: part[0].text, Value: next}
		if len(part) > 1 && part[1].is("=") {
			item.Expr = joinTokens(part[2:], -1)
			v, err := int64(0), errMissingValue
			if item.Expr != "" {
				v, err = evalIntExpr(item.Expr, p.constValue)
			}
			if err != nil {
				span := Location{Path: loc.Path, Line: part[0].line}.String()
				p.comp.Diagnostics.Warnf(diag.EnumValue, span, "%s = %s: %v; using %d", item.Name, item.Expr, err, next)
			} else {
				item.Value = v
			}
		}

		p.enumConsts[item.Name] = item.Value
		next = item.Value + 1
		items = append(items, item)
	}

	return items
}

// constValue resolves identifiers in enum and array size expressions.
func (p *parser) constValue(name string) (int64, bool) {
	if v, ok := p.enumConsts[name]; ok {
		return v, true
	}
	if _, ok := p.macros[name]; ok {
		return p.macroValue(0)(name)
	}
	return 0, false
}

// declarator parses one declarator and returns its name (empty when
// abstract) and a function that builds the declared type from the base
// type. Pointers bind first, then array and function suffixes from the
// right, then any parenthesized inner declarator.
func (p *parser) declarator(s *stream, loc Location) (string, func(Type) Type, error) {
	var ptrs []bool // true when the pointer itself is const

	for s.accept("*") {
		isConst := false
		for s.peek().isIdent("const") || s.peek().isIdent("volatile") {
			if s.next().text == "const" {
				isConst = true
			}
		}
		ptrs = append(ptrs, isConst)
	}

	for s.peek().kind == tokIdent && s.peekAt(1).kind == tokIdent {
		s.next()
	}
	if s.peek().is("(") && s.peekAt(1).kind == tokIdent && s.peekAt(2).is("*") {
		s.toks = append(s.toks[:s.pos+1:s.pos+1], s.toks[s.pos+2:]...)
	}

	name := ""
	inner := func(t Type) Type { return t }

	switch {
	case s.peek().kind == tokIdent:
		name = s.next().text

	case s.peek().is("(") && (s.peekAt(1).is("*") || s.peekAt(1).is("^")):
		s.next()
		if s.peek().is("^") {
			s.toks[s.pos].text = "*"
		}
		n, w, err := p.declarator(s, loc)
		if err != nil {
			return "", nil, err
		}
		if err := s.expect(")"); err != nil {
			return "", nil, err
		}
		name, inner = n, w
	}

	var suffixes []func(Type) Type

	for {
		switch {
		case s.peek().is("["):
			size := p.arraySize(s.group())
			suffixes = append(suffixes, func(t Type) Type { return &Array{Elem: t, Size: size} })
			continue

		case s.peek().is("("):
			params, variadic, err := p.params(s.group(), loc)
			if err != nil {
				return "", nil, err
			}
			suffixes = append(suffixes, func(t Type) Type {
				return &FunctionType{Return: t, Params: params, Variadic: variadic}
			})
			continue
		}
		break
	}

	wrap := func(t Type) Type {
		for _, isConst := range ptrs {
			t = &Pointer{Elem: t}
			if isConst {
				t = &Qualified{Qualifier: Const, Elem: t}
			}
		}
		for i := len(suffixes) - 1; i >= 0; i-- {
			t = suffixes[i](t)
		}
		return inner(t)
	}

	return name, wrap, nil
}

func (p *parser) arraySize(toks []token) int {
	if len(toks) == 0 {
		return 0
	}
	v, err := evalIntExpr(joinTokens(toks, -1), p.constValue)
	if err != nil || v < 0 {
		return 0
	}
	return int(v)
}

func (p *parser) params(toks []token, loc Location) ([]Param, bool, error) {
	if len(toks) == 0 || (len(toks) == 1 && toks[0].isIdent("void")) {
		return nil, false, nil
	}

	var params []Param
	variadic := false

	for _, part := range splitTop(toks, ",") {
		if len(part) == 1 && part[0].is("...") {
			variadic = true
			continue
		}

		s := &stream{toks: part}
		spec, err := p.specifiers(s, loc)
		if err != nil {
			return nil, false, fmt.Errorf("parameter: %w", err)
		}
		name, wrap, err := p.declarator(s, loc)
		if err != nil {
			return nil, false, fmt.Errorf("parameter: %w", err)
		}
		if !s.eof() {
			return nil, false, fmt.Errorf("parameter: unexpected %q", s.peek().text)
		}

		params = append(params, Param{Name: name, Type: decay(wrap(spec.typ))})
	}

	return params, variadic, nil
}

// decay applies the parameter adjustments C makes: arrays become pointers
// to their element and functions become function pointers.
func decay(t Type) Type {
	switch v := t.(type) {
	case *Array:
		return &Pointer{Elem: v.Elem}
	case *FunctionType:
		return &Pointer{Elem: v}
	}
	return t
}

func primitiveFromWords(words []string) PrimitiveKind {
	count := make(map[string]int, len(words))
	for _, w := range words {
		count[w]++
	}
	unsigned := count["unsigned"] > 0

	switch {
	case count["void"] > 0:
		return Void
	case count["_Bool"] > 0:
		return Bool
	case count["char"] > 0:
		switch {
		case unsigned:
			return UnsignedChar
		case count["signed"] > 0:
			return SignedChar
		}
		return Char
	case count["float"] > 0:
		return Float
	case count["double"] > 0:
		if count["long"] > 0 {
			return LongDouble
		}
		return Double
	case count["short"] > 0:
		if unsigned {
			return UnsignedShort
		}
		return Short
	case count["long"] == 1:
		if unsigned {
			return UnsignedLong
		}
		return Long
	case count["long"] >= 2:
		if unsigned {
			return UnsignedLongLong
		}
		return LongLong
	}

	if unsigned {
		return UnsignedInt
	}
	return Int
}

func kindWord(k RecordKind) string {
	if k == Union {
		return "union"
	}
	return "struct"
}

// String renders the parsed declarations, one per line, for debugging.
func (c *Compilation) String() string {
	var b strings.Builder
	for _, t := range c.Typedefs {
		fmt.Fprintf(&b, "typedef %s %s\n", t.Elem.DisplayName(), t.Name)
	}
	for _, e := range c.Enums {
		fmt.Fprintf(&b, "enum %s (%d items)\n", e.Name, len(e.Items))
	}
	for _, r := range c.Records {
		fmt.Fprintf(&b, "%s %s (%d fields)\n", kindWord(r.Kind), r.Name, len(r.Fields))
	}
	for _, f := range c.Functions {
		fmt.Fprintf(&b, "%s %s(%d params)\n", f.Return.DisplayName(), f.Name, len(f.Params))
	}
	return b.String()
}
