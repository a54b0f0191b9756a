package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ardanlabs/bindgen/diag"
)

var blockCommentRe = regexp.MustCompile(`/\*[\s\S]*?\*/`)
var lineCommentRe = regexp.MustCompile(`//[^\n]*`)
var directiveRe = regexp.MustCompile(`^\s*#\s*(\w*)\s*(.*)$`)
var includeRe = regexp.MustCompile(`^(?:"([^"]+)"|<([^>]+)>)`)
var defineRe = regexp.MustCompile(`^(\w+)(\([^)]*\))?\s*(.*)$`)
var definedRe = regexp.MustCompile(`defined\s*\(\s*(\w+)\s*\)|defined\s+(\w+)`)

// removeComments drops comments but keeps their line breaks so token line
// numbers still point at the original source.
func removeComments(s string) string {
	s = blockCommentRe.ReplaceAllStringFunc(s, func(c string) string {
		return strings.Repeat("\n", strings.Count(c, "\n"))
	})
	s = lineCommentRe.ReplaceAllString(s, "")

	return s
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	return s
}

type macro struct {
	body     string
	funcLike bool
	params   []string
	variadic bool
}

func newMacro(params, body string) macro {
	m := macro{body: strings.TrimSpace(body)}
	if params == "" {
		return m
	}

	m.funcLike = true
	for _, name := range strings.Split(strings.Trim(params, "()"), ",") {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			continue
		case name == "...":
			m.variadic = true
			name = "__VA_ARGS__"
		case strings.HasSuffix(name, "..."):
			m.variadic = true
			name = strings.TrimSpace(strings.TrimSuffix(name, "..."))
		}
		m.params = append(m.params, name)
	}

	return m
}

// substitute returns the body of a function-like macro with args in place
// of its parameters. expanded holds the macro-expanded form of each
// argument; the # and ## operators use the raw form. It reports false when
// the argument count does not fit.
func (m macro) substitute(raw, expanded [][]token, line int) ([]token, bool) {
	fixed := len(m.params)
	if m.variadic {
		fixed--
	}

	switch {
	case len(raw) == 1 && len(raw[0]) == 0 && fixed == 0 && !m.variadic:
		raw, expanded = nil, nil
	case m.variadic && len(raw) < fixed:
		return nil, false
	case !m.variadic && len(raw) != fixed:
		return nil, false
	}

	rawArg := make(map[string][]token, len(m.params))
	expArg := make(map[string][]token, len(m.params))
	for k := 0; k < fixed; k++ {
		rawArg[m.params[k]] = raw[k]
		expArg[m.params[k]] = expanded[k]
	}
	if m.variadic {
		name := m.params[fixed]
		rawArg[name] = joinArgs(raw[fixed:], line)
		expArg[name] = joinArgs(expanded[fixed:], line)
	}

	isParam := func(t token) bool {
		_, ok := rawArg[t.text]
		return ok && t.kind == tokIdent
	}

	body := tokenize(m.body, line)
	out := make([]token, 0, len(body))

	for k := 0; k < len(body); k++ {
		b := body[k]
		b.line = line

		switch {
		case b.is("#") && k+1 < len(body) && body[k+1].is("#"):
			k++
			if k+1 >= len(body) || len(out) == 0 {
				continue
			}
			k++
			rhs := []token{body[k]}
			if isParam(body[k]) {
				rhs = rawArg[body[k].text]
			}
			if len(rhs) == 0 {
				continue
			}
			out[len(out)-1].text += rhs[0].text
			out = append(out, relined(rhs[1:], line)...)

		case b.is("#") && k+1 < len(body) && isParam(body[k+1]):
			k++
			out = append(out, token{kind: tokString, text: strconv.Quote(joinTokens(rawArg[body[k].text], -1)), line: line})

		case isParam(b):
			a := expArg[b.text]
			if k+2 < len(body) && body[k+1].is("#") && body[k+2].is("#") {
				a = rawArg[b.text]
			}
			out = append(out, relined(a, line)...)

		default:
			out = append(out, b)
		}
	}

	return out, true
}

func joinArgs(args [][]token, line int) []token {
	var out []token
	for i, a := range args {
		if i > 0 {
			out = append(out, token{kind: tokPunct, text: ",", line: line})
		}
		out = append(out, a...)
	}
	return out
}

func relined(toks []token, line int) []token {
	out := make([]token, len(toks))
	for i, t := range toks {
		t.line = line
		out[i] = t
	}
	return out
}

// splitArgs cuts the tokens between the parentheses of a macro call into
// arguments.
func splitArgs(toks []token) [][]token {
	args := splitTop(toks, ",")
	if len(toks) == 0 || toks[len(toks)-1].is(",") {
		args = append(args, nil)
	}
	return args
}

type condFrame struct {
	parent bool
	active bool
	taken  bool
}

// fileState is the preprocessor state for one file being read.
type fileState struct {
	path  string
	conds []condFrame
	buf   strings.Builder
	start int
}

func (fs *fileState) active() bool {
	return len(fs.conds) == 0 || fs.conds[len(fs.conds)-1].active
}

// processFile preprocesses path and parses its declarations. Included files
// are processed at the point of inclusion so declarations keep source order.
func (p *parser) processFile(path string, data []byte) {
	p.visited[path] = true
	if p.system == 0 {
		p.comp.Files = append(p.comp.Files, path)
	}

	text := removeComments(normalizeNewlines(string(data)))
	lines := strings.Split(text, "\n")

	fs := &fileState{path: path, start: 1}

	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		ln := lines[i]

		spliced := 0
		for strings.HasSuffix(ln, "\\") && i+1 < len(lines) {
			ln = ln[:len(ln)-1] + " " + lines[i+1]
			i++
			spliced++
		}
		pad := strings.Repeat("\n", spliced+1)

		m := directiveRe.FindStringSubmatch(ln)
		if m == nil {
			if fs.active() {
				fs.buf.WriteString(ln)
			}
			fs.buf.WriteString(pad)
			continue
		}

		name, rest := m[1], strings.TrimSpace(m[2])
		if name == "include" && fs.active() {
			p.parseChunk(fs.path, fs.buf.String(), fs.start)
			fs.buf.Reset()
			p.include(fs.path, lineNo, rest)
			fs.start = i + 2
			continue
		}

		p.directive(fs, lineNo, name, rest)
		fs.buf.WriteString(pad)
	}

	if len(fs.conds) > 0 {
		p.comp.Diagnostics.Warnf(diag.ParseError, Location{Path: path, Line: len(lines)}.String(),
			"%d unterminated conditional block(s)", len(fs.conds))
	}

	p.parseChunk(fs.path, fs.buf.String(), fs.start)
}

func (p *parser) directive(fs *fileState, line int, name, rest string) {
	span := Location{Path: fs.path, Line: line}.String()

	switch name {
	case "ifdef", "ifndef":
		parent := fs.active()
		_, defined := p.macros[firstWord(rest)]
		cond := defined == (name == "ifdef")
		fs.conds = append(fs.conds, condFrame{parent: parent, active: parent && cond, taken: cond})

	case "if":
		parent := fs.active()
		cond := parent && p.evalCond(rest, span)
		fs.conds = append(fs.conds, condFrame{parent: parent, active: cond, taken: cond})

	case "elif":
		if len(fs.conds) == 0 {
			p.comp.Diagnostics.Warnf(diag.ParseError, span, "#elif without #if")
			return
		}
		top := &fs.conds[len(fs.conds)-1]
		if top.taken {
			top.active = false
			return
		}
		cond := top.parent && p.evalCond(rest, span)
		top.active = cond
		top.taken = cond

	case "else":
		if len(fs.conds) == 0 {
			p.comp.Diagnostics.Warnf(diag.ParseError, span, "#else without #if")
			return
		}
		top := &fs.conds[len(fs.conds)-1]
		top.active = top.parent && !top.taken
		top.taken = true

	case "endif":
		if len(fs.conds) == 0 {
			p.comp.Diagnostics.Warnf(diag.ParseError, span, "#endif without #if")
			return
		}
		fs.conds = fs.conds[:len(fs.conds)-1]

	case "define":
		if !fs.active() {
			return
		}
		if m := defineRe.FindStringSubmatch(rest); m != nil {
			p.macros[m[1]] = newMacro(m[2], m[3])
		}

	case "undef":
		if fs.active() {
			delete(p.macros, firstWord(rest))
		}
	}
}

func (p *parser) include(from string, line int, spec string) {
	m := includeRe.FindStringSubmatch(spec)
	if m == nil {
		return
	}

	quoted := m[1] != ""
	name := m[1]
	if !quoted {
		name = m[2]
	}

	var candidates []string
	if quoted {
		candidates = append(candidates, filepath.Join(filepath.Dir(from), name))
	}
	for _, dir := range p.opts.IncludeFolders {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	user := len(candidates)
	if !quoted {
		for _, dir := range p.opts.SystemIncludeFolders {
			candidates = append(candidates, filepath.Join(dir, name))
		}
	}

	for i, c := range candidates {
		c = filepath.Clean(c)
		if p.visited[c] {
			return
		}
		data, err := p.read(c)
		if err != nil {
			continue
		}

		if i >= user {
			p.system++
			p.processFile(c, data)
			p.system--
			return
		}
		p.processFile(c, data)
		return
	}

	// System headers are expected to be missing; their types fall back to
	// the built-in names.
	if quoted {
		p.comp.Diagnostics.Warnf(diag.IncludeNotFound, Location{Path: from, Line: line}.String(),
			"could not resolve include %q", name)
	}
}

// evalCond evaluates a #if expression. Unknown identifiers are 0, as in C.
func (p *parser) evalCond(expr, span string) bool {
	expr = definedRe.ReplaceAllStringFunc(expr, func(s string) string {
		m := definedRe.FindStringSubmatch(s)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if _, ok := p.macros[name]; ok {
			return "1"
		}
		return "0"
	})

	expr = joinTokens(p.expand(tokenize(expr, 0), 0, make(map[string]bool)), -1)

	v, err := evalIntExpr(expr, p.macroValue(0))
	if err != nil {
		p.comp.Diagnostics.Infof(diag.ParseError, span, "treating #if %q as false: %v", expr, err)
		return false
	}
	return v != 0
}

func (p *parser) macroValue(depth int) func(string) (int64, bool) {
	return func(name string) (int64, bool) {
		m, ok := p.macros[name]
		if !ok || m.funcLike || depth > 8 {
			return 0, true
		}
		if m.body == "" {
			return 0, true
		}
		body := p.expand(tokenize(m.body, 0), 0, map[string]bool{name: true})
		v, err := evalIntExpr(joinTokens(body, -1), p.macroValue(depth+1))
		if err != nil {
			return 0, false
		}
		return v, true
	}
}

func firstWord(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
