package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
)

// Location is where a declaration was found.
type Location struct {
	Path string
	Line int
}

func (l Location) String() string {
	if l.Path == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// Filename is the base name of the file without its extension.
func (l Location) Filename() string {
	base := filepath.Base(l.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Folder is the name of the directory containing the file.
func (l Location) Folder() string {
	return filepath.Base(filepath.Dir(l.Path))
}

// Visitor has one method per Type variant. Adding a variant means adding a
// method here, which breaks every implementation until it handles it.
type Visitor interface {
	VisitPrimitive(*Primitive) string
	VisitPointer(*Pointer) string
	VisitArray(*Array) string
	VisitEnum(*Enum) string
	VisitRecord(*Record) string
	VisitFunctionType(*FunctionType) string
	VisitTypedef(*Typedef) string
	VisitQualified(*Qualified) string
}

// Type is a native type descriptor.
type Type interface {
	Accept(v Visitor) string
	DisplayName() string
}

type PrimitiveKind int

const (
	Void PrimitiveKind = iota
	Bool
	Char
	SignedChar
	WChar
	Short
	Int
	Long
	LongLong
	UnsignedChar
	UnsignedShort
	UnsignedInt
	UnsignedLong
	UnsignedLongLong
	Float
	Double
	LongDouble
)

var primitiveNames = [...]string{
	Void:             "void",
	Bool:             "bool",
	Char:             "char",
	SignedChar:       "signed char",
	WChar:            "wchar",
	Short:            "short",
	Int:              "int",
	Long:             "long",
	LongLong:         "long long",
	UnsignedChar:     "unsigned char",
	UnsignedShort:    "unsigned short",
	UnsignedInt:      "unsigned int",
	UnsignedLong:     "unsigned long",
	UnsignedLongLong: "unsigned long long",
	Float:            "float",
	Double:           "double",
	LongDouble:       "long double",
}

func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveNames) {
		return primitiveNames[k]
	}
	return fmt.Sprintf("primitive(%d)", int(k))
}

type Primitive struct {
	Kind PrimitiveKind
}

type Pointer struct {
	Elem Type
}

// Array has Size <= 0 when the extent is unknown.
type Array struct {
	Elem Type
	Size int
}

type EnumItem struct {
	Name  string
	Value int64
	Expr  string // value expression as written, empty when implicit
}

type Enum struct {
	Name  string
	Items []EnumItem
	Loc   Location
}

// HasExplicitValue reports whether any item was given a value expression.
func (e *Enum) HasExplicitValue() bool {
	for _, it := range e.Items {
		if strings.TrimSpace(it.Expr) != "" {
			return true
		}
	}
	return false
}

type RecordKind int

const (
	Struct RecordKind = iota
	Union
)

type Field struct {
	Name string
	Type Type
}

// Record is a struct or union. Complete is false for forward declarations
// and for types only known by name.
type Record struct {
	Name     string
	Kind     RecordKind
	Fields   []Field
	Complete bool
	Loc      Location
}

type Param struct {
	Name string
	Type Type
}

type FunctionType struct {
	Return   Type
	Params   []Param
	Variadic bool
}

type Typedef struct {
	Name string
	Elem Type
	Loc  Location
}

// IsPrimitive reports whether the typedef directly names a primitive.
func (t *Typedef) IsPrimitive() bool {
	_, ok := t.Elem.(*Primitive)
	return ok
}

// IsFunction reports whether the typedef chain ends in a function or a
// pointer to one.
func (t *Typedef) IsFunction() bool {
	switch e := t.Elem.(type) {
	case *Typedef:
		return e.IsFunction()
	case *Pointer:
		_, ok := e.Elem.(*FunctionType)
		return ok
	case *FunctionType:
		return true
	}
	return false
}

type Qualifier int

const (
	Const Qualifier = iota
	Volatile
)

func (q Qualifier) String() string {
	if q == Volatile {
		return "volatile"
	}
	return "const"
}

type Qualified struct {
	Qualifier Qualifier
	Elem      Type
}

// Function is a function declaration.
type Function struct {
	Name     string
	Return   Type
	Params   []Param
	Variadic bool
	Loc      Location
}

// Compilation is everything parsed from one set of headers, in the order
// the declarations were found.
type Compilation struct {
	Typedefs    []*Typedef
	Enums       []*Enum
	Functions   []*Function
	Records     []*Record
	Files       []string
	Diagnostics diag.List
}

func (t *Primitive) Accept(v Visitor) string    { return v.VisitPrimitive(t) }
func (t *Pointer) Accept(v Visitor) string      { return v.VisitPointer(t) }
func (t *Array) Accept(v Visitor) string        { return v.VisitArray(t) }
func (t *Enum) Accept(v Visitor) string         { return v.VisitEnum(t) }
func (t *Record) Accept(v Visitor) string       { return v.VisitRecord(t) }
func (t *FunctionType) Accept(v Visitor) string { return v.VisitFunctionType(t) }
func (t *Typedef) Accept(v Visitor) string      { return v.VisitTypedef(t) }
func (t *Qualified) Accept(v Visitor) string    { return v.VisitQualified(t) }

func (t *Primitive) DisplayName() string    { return t.Accept(display{}) }
func (t *Pointer) DisplayName() string      { return t.Accept(display{}) }
func (t *Array) DisplayName() string        { return t.Accept(display{}) }
func (t *Enum) DisplayName() string         { return t.Accept(display{}) }
func (t *Record) DisplayName() string       { return t.Accept(display{}) }
func (t *FunctionType) DisplayName() string { return t.Accept(display{}) }
func (t *Typedef) DisplayName() string      { return t.Accept(display{}) }
func (t *Qualified) DisplayName() string    { return t.Accept(display{}) }

// display spells types the way C declares them, without identifiers.
type display struct{}

func (display) VisitPrimitive(t *Primitive) string { return t.Kind.String() }

func (d display) VisitPointer(t *Pointer) string {
	if fn, ok := t.Elem.(*FunctionType); ok {
		return fmt.Sprintf("%s (*)(%s)", fn.Return.Accept(d), d.params(fn))
	}
	return t.Elem.Accept(d) + "*"
}

func (d display) VisitArray(t *Array) string {
	if t.Size > 0 {
		return fmt.Sprintf("%s[%d]", t.Elem.Accept(d), t.Size)
	}
	return t.Elem.Accept(d) + "[]"
}

func (display) VisitEnum(t *Enum) string     { return t.Name }
func (display) VisitRecord(t *Record) string { return t.Name }

func (d display) VisitFunctionType(t *FunctionType) string {
	return fmt.Sprintf("%s (%s)", t.Return.Accept(d), d.params(t))
}

func (display) VisitTypedef(t *Typedef) string { return t.Name }

func (d display) VisitQualified(t *Qualified) string {
	if _, ok := t.Elem.(*Pointer); ok {
		return t.Elem.Accept(d) + " " + t.Qualifier.String()
	}
	return t.Qualifier.String() + " " + t.Elem.Accept(d)
}

func (d display) params(fn *FunctionType) string {
	parts := make([]string, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		parts = append(parts, p.Type.Accept(d))
	}
	if fn.Variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}
