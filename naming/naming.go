// Package naming converts native identifiers into target-language ones.
package naming

import (
	"slices"
	"strings"
)

// StripPrefix removes the longest prefix in prefixes that name starts with.
// Only the leading occurrence is removed.
func StripPrefix(prefixes []string, name string) string {
	longest := ""
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) && len(p) > len(longest) {
			longest = p
		}
	}
	return strings.TrimPrefix(name, longest)
}

// SnakeCase turns DoThing into do_thing. Names without uppercase letters are
// returned unchanged, so applying it twice is the same as applying it once.
func SnakeCase(name string) string {
	if !hasUpper(name) {
		return name
	}

	var b strings.Builder
	b.Grow(len(name) + 4)

	for i := 0; i < len(name); i++ {
		c := name[i]
		if isUpper(c) && i > 0 && name[i-1] != '_' {
			prev := name[i-1]
			nextLower := i+1 < len(name) && isLower(name[i+1])
			if isLower(prev) || isDigit(prev) || (isUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteByte(c)
	}

	return strings.ToLower(b.String())
}

// PascalCase turns sdl_window or SDL_WINDOW into SdlWindow. Words are
// separated by underscores and whitespace; other punctuation is dropped.
func PascalCase(name string) string {
	var words []string
	var cur []byte

	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || c == ' ' || c == '\t' || c == '\n':
			flush()
		case isLetter(c) || isDigit(c):
			cur = append(cur, c)
		}
	}
	flush()

	var b strings.Builder
	for _, w := range words {
		b.WriteString(pascalWord(w))
	}
	return b.String()
}

func pascalWord(w string) string {
	s := []byte(w)

	// Leading lowercase letter.
	if isLower(s[0]) {
		s[0] = toUpper(s[0])
	}

	// A trailing run of capitals and digits after a capital: ABC -> Abc.
	for p := 1; p < len(s); p++ {
		if isUpper(s[p-1]) && allUpperOrDigit(s[p:]) {
			for k := p; k < len(s); k++ {
				s[k] = toLower(s[k])
			}
			break
		}
	}

	// A lowercase letter after a digit: Ab9cd -> Ab9Cd.
	for k := 1; k < len(s); k++ {
		if isDigit(s[k-1]) && isLower(s[k]) {
			s[k] = toUpper(s[k])
		}
	}

	// An interior run of capitals that ends before a capitalized word or a
	// digit: SDLWindow -> SdlWindow.
	orig := append([]byte(nil), s...)
	for i := 1; i < len(orig); {
		if !isUpper(orig[i-1]) || !isUpper(orig[i]) {
			i++
			continue
		}

		end := -1
		for j := i + 1; j <= len(orig) && isUpper(orig[j-1]); j++ {
			if j < len(orig) && (isDigit(orig[j]) || (isUpper(orig[j]) && j+1 < len(orig) && isLower(orig[j+1]))) {
				end = j
				break
			}
		}
		if end < 0 {
			i++
			continue
		}

		for k := i; k < end; k++ {
			s[k] = toLower(orig[k])
		}
		i = end
	}

	return string(s)
}

// AdaCase is PascalCase with an underscore before every interior capital:
// sdl_window -> Sdl_Window.
func AdaCase(name string) string {
	p := PascalCase(name)

	var b strings.Builder
	for i := 0; i < len(p); i++ {
		if i > 0 && isUpper(p[i]) {
			b.WriteByte('_')
		}
		b.WriteByte(p[i])
	}
	return b.String()
}

// TypeName drops the conventional _t suffix from a type name.
func TypeName(name string) string {
	return strings.TrimSuffix(name, "_t")
}

// EnumMemberName lowercases SCREAMING_CASE and snake-cases mixed case
// member names. A member starting with a digit gets a leading underscore.
func EnumMemberName(name string) string {
	var out string
	switch {
	case strings.Contains(name, "_"), !hasLower(name):
		out = strings.ToLower(name)
	default:
		out = SnakeCase(name)
	}
	return SafeLeadingDigit(out)
}

// SafeLeadingDigit prefixes names that start with a digit with an
// underscore.
func SafeLeadingDigit(name string) string {
	if name != "" && isDigit(name[0]) {
		return "_" + name
	}
	return name
}

// CommonPrefix returns the character-wise prefix the first name shares
// with all the others.
func CommonPrefix(names []string) string {
	if len(names) == 0 {
		return ""
	}

	first := names[0]
	n := len(first)
	for _, other := range names[1:] {
		i := 0
		for i < n && i < len(other) && other[i] == first[i] {
			i++
		}
		n = i
	}
	return first[:n]
}

// StripCommonPrefix removes the first occurrence of the names' common prefix
// from each of them. When a name is the whole prefix, the prefix is cut back
// to its last underscore so no name becomes empty.
func StripCommonPrefix(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)

	if len(names) < 2 {
		return out
	}

	prefix := CommonPrefix(names)
	for prefix != "" && slices.Contains(names, prefix) {
		prefix = prefix[:strings.LastIndexByte(prefix[:len(prefix)-1], '_')+1]
	}
	if prefix == "" {
		return out
	}

	for i, n := range names {
		out[i] = strings.Replace(n, prefix, "", 1)
	}
	return out
}

func allUpperOrDigit(s []byte) bool {
	for _, c := range s {
		if !isUpper(c) && !isDigit(c) {
			return false
		}
	}
	return len(s) > 0
}

func hasUpper(s string) bool {
	for i := 0; i < len(s); i++ {
		if isUpper(s[i]) {
			return true
		}
	}
	return false
}

func hasLower(s string) bool {
	for i := 0; i < len(s); i++ {
		if isLower(s[i]) {
			return true
		}
	}
	return false
}

func isUpper(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool  { return c >= 'a' && c <= 'z' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return isUpper(c) || isLower(c) }
func toUpper(c byte) byte  { return c - 'a' + 'A' }
func toLower(c byte) byte {
	if isUpper(c) {
		return c - 'A' + 'a'
	}
	return c
}
