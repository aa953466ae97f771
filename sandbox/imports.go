package sandbox

import (
	"strings"
)

type tokKind int

const (
	tokName tokKind = iota
	tokString
	tokOp
	tokNewline
)

type token struct {
	kind       tokKind
	text       string
	start, end int
	depth      int // bracket depth at the token
}

// binding is one name introduced by an import statement.
type binding struct {
	name   string // bound name
	module string // source module
	member string // member name, empty to bind the module itself; "*" for all members
}

// scanImports finds Python-style import statements, checks their modules
// against the allow-list and replaces each statement with pass. Imports are
// recognized at the start of any statement, including after ";" and after
// the ":" of a block header. Text inside string literals and comments is
// never treated as an import. Line numbers are preserved.
func scanImports(src string, allowed map[string]bool) (string, []binding, *violation) {
	toks := lex(src)

	type edit struct{ start, end int }
	var (
		bindings []binding
		edits    []edit
	)

	head := true
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if head && t.kind == tokName && (t.text == "import" || t.text == "from") {
			j := i + 1
			for j < len(toks) && !endsStatement(toks[j]) {
				j++
			}
			found, modules, ok := parseImport(toks[i:j])
			for _, m := range modules {
				if !allowed[m] {
					return "", nil, &violation{msg: importDenied(m, allowed)}
				}
			}
			if ok {
				bindings = append(bindings, found...)
				edits = append(edits, edit{start: t.start, end: toks[j-1].end})
			}
			// Malformed statements are left for the parser to report.
			i = j - 1
			head = false
			continue
		}
		head = opensStatement(t)
	}

	if len(edits) == 0 {
		return src, bindings, nil
	}
	var b strings.Builder
	last := 0
	for _, e := range edits {
		b.WriteString(src[last:e.start])
		b.WriteString("pass")
		b.WriteString(strings.Repeat(" \\\n", strings.Count(src[e.start:e.end], "\n")))
		last = e.end
	}
	b.WriteString(src[last:])
	return b.String(), bindings, nil
}

func endsStatement(t token) bool {
	return t.kind == tokNewline || (t.kind == tokOp && t.depth == 0 && t.text == ";")
}

func opensStatement(t token) bool {
	return endsStatement(t) || (t.kind == tokOp && t.depth == 0 && t.text == ":")
}

// lex splits src into the tokens needed to find import statements. Comments
// and line continuations are dropped, string literals are kept whole and
// newlines inside brackets are not reported.
func lex(src string) []token {
	var toks []token
	depth := 0
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\\' && i+1 < len(src) && src[i+1] == '\n':
			i += 2
		case c == '\n':
			if depth == 0 {
				toks = append(toks, token{kind: tokNewline, text: "\n", start: i, end: i + 1})
			}
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			i++
		case c == '"' || c == '\'':
			end := stringEnd(src, i)
			toks = append(toks, token{kind: tokString, text: src[i:end], start: i, end: end, depth: depth})
			i = end
		case isNameByte(c):
			j := i
			for j < len(src) && isNameByte(src[j]) {
				j++
			}
			if j < len(src) && (src[j] == '"' || src[j] == '\'') && isStringPrefix(src[i:j]) {
				end := stringEnd(src, j)
				toks = append(toks, token{kind: tokString, text: src[i:end], start: i, end: end, depth: depth})
				i = end
				break
			}
			toks = append(toks, token{kind: tokName, text: src[i:j], start: i, end: j, depth: depth})
			i = j
		default:
			toks = append(toks, token{kind: tokOp, text: src[i : i+1], start: i, end: i + 1, depth: depth})
			switch c {
			case '(', '[', '{':
				depth++
			case ')', ']', '}':
				if depth > 0 {
					depth--
				}
			}
			i++
		}
	}
	return toks
}

// stringEnd returns the offset just past the string literal whose opening
// quote is at src[i]. An unterminated single-quoted string ends at the line
// break and an unterminated triple-quoted string at the end of input.
func stringEnd(src string, i int) int {
	delim := src[i : i+1]
	if strings.HasPrefix(src[i:], strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	for j := i + len(delim); j < len(src); {
		switch {
		case src[j] == '\\':
			j += 2
		case strings.HasPrefix(src[j:], delim):
			return j + len(delim)
		case src[j] == '\n' && len(delim) == 1:
			return j
		default:
			j++
		}
	}
	return len(src)
}

func isNameByte(c byte) bool {
	return c == '_' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func isStringPrefix(s string) bool {
	switch strings.ToLower(s) {
	case "r", "b", "u", "f", "rb", "br", "rf", "fr":
		return true
	}
	return false
}

// importParser reads one import statement from its tokens.
type importParser struct {
	toks []token
	pos  int
}

// parseImport parses "import a.b as c, d" and "from a import (b as c, d)"
// forms. modules lists every module named before any malformed part, so a
// denied module is reported even when the statement would not parse.
func parseImport(stmt []token) (found []binding, modules []string, ok bool) {
	p := &importParser{toks: stmt, pos: 1}
	switch stmt[0].text {
	case "import":
		for {
			module, good := p.dotted()
			if !good {
				return nil, modules, false
			}
			modules = append(modules, module)
			name, _, _ := strings.Cut(module, ".")
			if p.accept("as") {
				if name, good = p.name(); !good {
					return nil, modules, false
				}
			}
			found = append(found, binding{name: name, module: module})
			if !p.accept(",") {
				break
			}
		}
	case "from":
		module, good := p.dotted()
		if !good {
			return nil, nil, false
		}
		modules = append(modules, module)
		if !p.accept("import") {
			return nil, modules, false
		}
		if p.accept("*") {
			found = append(found, binding{name: "*", module: module, member: "*"})
			break
		}
		paren := p.accept("(")
		for {
			member, good := p.name()
			if !good {
				return nil, modules, false
			}
			name := member
			if p.accept("as") {
				if name, good = p.name(); !good {
					return nil, modules, false
				}
			}
			found = append(found, binding{name: name, module: module, member: member})
			if !p.accept(",") || (paren && p.peek(")")) {
				break
			}
		}
		if paren && !p.accept(")") {
			return nil, modules, false
		}
	}
	return found, modules, p.pos == len(p.toks)
}

func (p *importParser) peek(text string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind != tokString && p.toks[p.pos].text == text
}

func (p *importParser) accept(text string) bool {
	if p.peek(text) {
		p.pos++
		return true
	}
	return false
}

func (p *importParser) name() (string, bool) {
	if p.pos < len(p.toks) && p.toks[p.pos].kind == tokName {
		p.pos++
		return p.toks[p.pos-1].text, true
	}
	return "", false
}

func (p *importParser) dotted() (string, bool) {
	first, ok := p.name()
	if !ok {
		return "", false
	}
	parts := []string{first}
	for p.accept(".") {
		next, ok := p.name()
		if !ok {
			return "", false
		}
		parts = append(parts, next)
	}
	return strings.Join(parts, "."), true
}
