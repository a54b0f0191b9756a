package typemap

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
	"github.com/ardanlabs/bindgen/parser"
)

// Mapper turns native type descriptors into target type text. It never
// fails: anything it cannot express is degraded to the dialect's opaque
// pointer or the native name, and reported as a diagnostic.
type Mapper struct {
	env   *Environment
	span  string
	diags diag.List
}

func NewMapper(env *Environment) *Mapper {
	return &Mapper{env: env}
}

// Map returns the target spelling of t. span locates any diagnostic.
func (m *Mapper) Map(t parser.Type, span string) string {
	m.span = span
	return t.Accept(m)
}

// Diagnostics returns everything reported since the mapper was created.
func (m *Mapper) Diagnostics() diag.List {
	return m.diags
}

func (m *Mapper) lookup(name string) string {
	if t, ok := m.env.Lookup(name); ok {
		return t
	}
	m.diags.Warnf(diag.UnmappedType, m.span, "no conversion found for %s", name)
	return name
}

func (m *Mapper) primitive(k parser.PrimitiveKind) string {
	s, ok := m.env.Dialect.Primitive(k)
	if !ok {
		m.diags.Warnf(diag.UnsupportedPrimitive, m.span, "%s has no exact %s equivalent, using %s", k, m.env.Dialect.Name, s)
	}
	return s
}

func (m *Mapper) VisitPrimitive(t *parser.Primitive) string {
	if _, ok := m.env.Dialect.Primitive(t.Kind); !ok {
		return m.primitive(t.Kind)
	}
	return m.lookup(t.DisplayName())
}

func (m *Mapper) VisitEnum(t *parser.Enum) string {
	return m.lookup(t.DisplayName())
}

func (m *Mapper) VisitRecord(t *parser.Record) string {
	if t.Kind == parser.Union {
		m.diags.Warnf(diag.UnsupportedUnion, m.span, "union %s is passed as %s", t.Name, m.env.Dialect.Opaque)
		return m.env.Dialect.Opaque
	}
	return m.lookup(t.DisplayName())
}

func (m *Mapper) VisitQualified(t *parser.Qualified) string {
	if t.Qualifier == parser.Const {
		return t.Elem.Accept(m)
	}
	return m.lookup(t.DisplayName())
}

func (m *Mapper) VisitTypedef(t *parser.Typedef) string {
	if p, ok := t.Elem.(*parser.Primitive); ok {
		return m.primitive(p.Kind)
	}
	return t.Elem.Accept(m)
}

// VisitFunctionType handles a function type reached through a typedef of a
// function rather than of a function pointer.
func (m *Mapper) VisitFunctionType(t *parser.FunctionType) string {
	return m.function(t)
}

func (m *Mapper) VisitArray(t *parser.Array) string {
	if r, ok := t.Elem.(*parser.Record); ok && strings.Contains(r.Name, "va_") {
		m.diags.Warnf(diag.VariadicArray, m.span, "variadic argument list %s is passed as %s", r.Name, m.env.Dialect.Opaque)
		return m.env.Dialect.Annotated(m.env.Dialect.Opaque, "..."+m.env.Dialect.Opaque)
	}

	elem := t.Elem.Accept(m)
	if t.Size > 0 {
		return fmt.Sprintf("[%d]%s", t.Size, elem)
	}
	return "[]" + elem
}

func (m *Mapper) VisitPointer(t *parser.Pointer) string {
	d := m.env.Dialect

	switch {
	case isChar(t.Elem):
		return d.CString
	case isVoid(t.Elem):
		return d.Opaque
	}

	switch e := t.Elem.(type) {
	case *parser.Pointer:
		return d.Annotated(d.PointerTo(d.Opaque), t.DisplayName())

	case *parser.Qualified:
		if e.Qualifier == parser.Const {
			return d.PointerTo(e.Elem.Accept(m))
		}

	case *parser.FunctionType:
		return m.function(e)

	case *parser.Typedef:
		if e.IsFunction() {
			return e.Accept(m)
		}
		return d.PointerTo(e.Accept(m))
	}

	return d.PointerTo(m.lookup(t.Elem.DisplayName()))
}

// function synthesizes a function type. A callback whose own parameters
// are callbacks cannot be expressed, so the outermost nested callback
// stands in for the whole signature.
func (m *Mapper) function(fn *parser.FunctionType) string {
	d := m.env.Dialect

	if len(fn.Params) == 1 {
		if inner := funcPointee(fn.Params[0].Type); inner != nil {
			fn = inner
		}
	}
	for _, p := range fn.Params {
		if inner := funcPointee(p.Type); inner != nil {
			fn = inner
		}
	}

	nested := resolvesToFunction(fn.Return)
	params := make([]string, 0, len(fn.Params))
	for _, p := range fn.Params {
		if resolvesToFunction(p.Type) {
			nested = true
		}
		params = append(params, p.Type.Accept(m))
	}

	ret := ""
	if !isVoid(fn.Return) {
		ret = fn.Return.Accept(m)
	}

	sig := d.FuncType(params, ret)
	if nested {
		m.diags.Warnf(diag.NestedFuncPointer, m.span, "callback %s takes or returns a callback, passed as %s", sig, d.Opaque)
		return d.Annotated(d.Opaque, sig)
	}
	return sig
}

// funcPointee returns the function a function pointer points at.
func funcPointee(t parser.Type) *parser.FunctionType {
	if q, ok := t.(*parser.Qualified); ok {
		t = q.Elem
	}
	if p, ok := t.(*parser.Pointer); ok {
		if fn, ok := p.Elem.(*parser.FunctionType); ok {
			return fn
		}
	}
	return nil
}

func resolvesToFunction(t parser.Type) bool {
	switch v := t.(type) {
	case *parser.Qualified:
		return resolvesToFunction(v.Elem)
	case *parser.FunctionType:
		return true
	case *parser.Typedef:
		return v.IsFunction()
	}
	return funcPointee(t) != nil
}

func isChar(t parser.Type) bool {
	if q, ok := t.(*parser.Qualified); ok && q.Qualifier == parser.Const {
		t = q.Elem
	}
	p, ok := t.(*parser.Primitive)
	return ok && p.Kind == parser.Char
}

func isVoid(t parser.Type) bool {
	if q, ok := t.(*parser.Qualified); ok && q.Qualifier == parser.Const {
		t = q.Elem
	}
	p, ok := t.(*parser.Primitive)
	return ok && p.Kind == parser.Void
}
