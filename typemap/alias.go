// Package typemap resolves native types to target-language type text.
package typemap

import (
	"github.com/ardanlabs/bindgen/parser"
)

// Alias maps typedef names to the display name of what they alias, and
// back. Later typedefs overwrite earlier ones for the same key.
type Alias struct {
	names map[string]string
}

func NewAlias(typedefs []*parser.Typedef) *Alias {
	a := Alias{names: make(map[string]string, len(typedefs)*2)}
	for _, td := range typedefs {
		underlying := td.Elem.DisplayName()
		a.names[underlying] = td.Name
		a.names[td.Name] = underlying
	}
	return &a
}

// Lookup returns the other side of the typedef involving name, or name
// itself when there is none.
func (a *Alias) Lookup(name string) string {
	if n, ok := a.names[name]; ok {
		return n
	}
	return name
}
