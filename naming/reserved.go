package naming

// Reserved is a closed set of target-language keywords and the spellings
// used in their place.
type Reserved struct {
	words map[string]bool
	subs  map[string]string
}

// NewReserved builds the set. subs maps a reserved word to its replacement
// for parameters and locals.
func NewReserved(words []string, subs map[string]string) *Reserved {
	r := Reserved{
		words: make(map[string]bool, len(words)),
		subs:  make(map[string]string, len(subs)),
	}
	for _, w := range words {
		r.words[w] = true
	}
	for k, v := range subs {
		r.subs[k] = v
	}
	return &r
}

// With returns a copy of r with extra substitutions. Keys that are not
// already reserved become reserved.
func (r *Reserved) With(subs map[string]string) *Reserved {
	out := NewReserved(nil, r.subs)
	for w := range r.words {
		out.words[w] = true
	}
	for k, v := range subs {
		out.words[k] = true
		out.subs[k] = v
	}
	return out
}

func (r *Reserved) Is(name string) bool {
	return r.words[name]
}

// Escape returns the spelling to use for a parameter or local called name.
// ok is false when name is reserved but has no substitution; the result is
// then name with a trailing underscore.
func (r *Reserved) Escape(name string) (string, bool) {
	if !r.words[name] {
		return name, true
	}
	if s, ok := r.subs[name]; ok {
		return s, true
	}
	return name + "_", false
}

// EscapeField prefixes a reserved struct field with marker so it keeps the
// native spelling.
func (r *Reserved) EscapeField(name, marker string) string {
	if r.words[name] {
		return marker + name
	}
	return name
}
