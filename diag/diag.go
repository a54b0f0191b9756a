// Package diag collects the non-fatal findings of a generation run so
// callers can inspect them instead of scraping console output.
package diag

import (
	"fmt"
	"log/slog"
	"strings"
)

type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Code identifies the kind of finding.
type Code string

const (
	UnmappedType         Code = "unmapped-type"
	UnsupportedUnion     Code = "unsupported-union"
	NestedFuncPointer    Code = "nested-function-pointer"
	VariadicArray        Code = "variadic-array"
	VariadicFunction     Code = "variadic-function"
	NamelessEnum         Code = "nameless-enum"
	ReservedWord         Code = "reserved-word"
	UnsupportedPrimitive Code = "unsupported-primitive"
	ParseError           Code = "parse"
	IncludeNotFound      Code = "include-not-found"
	EnumValue            Code = "enum-value"
	EmptyEnum            Code = "empty-enum"
	OverrideCollision    Code = "override-collision"
	DuplicateFunction    Code = "duplicate-function"
)

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Span     string // path:line, empty when unknown
}

func (d Diagnostic) String() string {
	if d.Span == "" {
		return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s: %s [%s] %s", d.Span, d.Severity, d.Code, d.Message)
}

// List is an ordered diagnostics sequence.
type List []Diagnostic

func (l *List) Add(sev Severity, code Code, span, format string, args ...any) {
	*l = append(*l, Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

func (l *List) Warnf(code Code, span, format string, args ...any) {
	l.Add(Warning, code, span, format, args...)
}

func (l *List) Infof(code Code, span, format string, args ...any) {
	l.Add(Info, code, span, format, args...)
}

func (l *List) Errorf(code Code, span, format string, args ...any) {
	l.Add(Error, code, span, format, args...)
}

// Append adds all of other to l.
func (l *List) Append(other List) {
	*l = append(*l, other...)
}

func (l List) HasErrors() bool {
	for _, d := range l {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// ByCode returns the diagnostics carrying code, in order.
func (l List) ByCode(code Code) List {
	var out List
	for _, d := range l {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

func (l List) String() string {
	var b strings.Builder
	for _, d := range l {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Log writes every diagnostic to log at the matching level.
func (l List) Log(log *slog.Logger) {
	for _, d := range l {
		attrs := []any{"code", string(d.Code)}
		if d.Span != "" {
			attrs = append(attrs, "span", d.Span)
		}
		switch d.Severity {
		case Error:
			log.Error(d.Message, attrs...)
		case Warning:
			log.Warn(d.Message, attrs...)
		default:
			log.Info(d.Message, attrs...)
		}
	}
}
