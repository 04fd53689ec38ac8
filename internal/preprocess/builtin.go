package preprocess

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxExpandDepth = 32

// Builtin is an in-process preprocessor. It handles `define, `undef,
// `ifdef/`ifndef/`elsif/`else/`endif and `include, and expands macro uses.
// Lines removed by conditionals or directives are kept as blank lines so
// positions in the expanded text match the input file.
type Builtin struct{}

type macro struct {
	params []string
	body   string
	fn     bool
}

type cond struct {
	active   bool // lines in the current branch are emitted
	taken    bool // some branch of this conditional was taken
	parentOn bool
}

type expander struct {
	ctx         context.Context
	macros      map[string]macro
	includeDirs []string
	stack       []string // files being expanded, for cycle detection
}

func (Builtin) Preprocess(ctx context.Context, req Request) (Result, error) {
	e := &expander{ctx: ctx, macros: make(map[string]macro), includeDirs: req.IncludeDirs}
	for _, m := range req.Macros {
		name, value, _ := SplitMacro(m)
		if name == "" {
			return Result{}, fmt.Errorf("empty macro name in %q", m)
		}
		e.macros[name] = macro{body: value}
	}
	var b strings.Builder
	if err := e.file(req.Path, &b); err != nil {
		return Result{}, err
	}
	return finish(req, b.String())
}

// ExpandString preprocesses src as if it were the contents of name.
func (Builtin) ExpandString(ctx context.Context, name, src string, macros []string) (string, error) {
	e := &expander{ctx: ctx, macros: make(map[string]macro)}
	for _, m := range macros {
		n, v, _ := SplitMacro(m)
		e.macros[n] = macro{body: v}
	}
	var b strings.Builder
	if err := e.text(name, src, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (e *expander) file(path string, b *strings.Builder) error {
	for _, p := range e.stack {
		if p == path {
			return fmt.Errorf("include cycle: %s", strings.Join(append(e.stack, path), " -> "))
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	e.stack = append(e.stack, path)
	defer func() { e.stack = e.stack[:len(e.stack)-1] }()
	return e.text(path, string(data), b)
}

func (e *expander) text(path, src string, b *strings.Builder) error {
	lines := strings.Split(src, "\n")
	var conds []cond
	on := func() bool { return len(conds) == 0 || conds[len(conds)-1].active }

	for i := 0; i < len(lines); i++ {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		line := lines[i]
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		name, rest := directive(trimmed)

		switch name {
		case "ifdef", "ifndef":
			_, defined := e.macros[firstWord(rest)]
			active := on() && (defined == (name == "ifdef"))
			conds = append(conds, cond{active: active, taken: active, parentOn: on()})
			b.WriteString("\n")
			continue
		case "elsif":
			if len(conds) == 0 {
				return fmt.Errorf("%s:%d: `elsif without `ifdef", path, lineNo)
			}
			c := &conds[len(conds)-1]
			_, defined := e.macros[firstWord(rest)]
			c.active = c.parentOn && !c.taken && defined
			c.taken = c.taken || c.active
			b.WriteString("\n")
			continue
		case "else":
			if len(conds) == 0 {
				return fmt.Errorf("%s:%d: `else without `ifdef", path, lineNo)
			}
			c := &conds[len(conds)-1]
			c.active = c.parentOn && !c.taken
			c.taken = true
			b.WriteString("\n")
			continue
		case "endif":
			if len(conds) == 0 {
				return fmt.Errorf("%s:%d: `endif without `ifdef", path, lineNo)
			}
			conds = conds[:len(conds)-1]
			b.WriteString("\n")
			continue
		}

		if !on() {
			// keep the line count of skipped regions
			if i < len(lines)-1 {
				b.WriteString("\n")
			}
			continue
		}

		switch name {
		case "define":
			// collect continuation lines
			def := rest
			extra := 0
			for strings.HasSuffix(strings.TrimRight(def, " \t\r"), "\\") && i+1 < len(lines) {
				def = strings.TrimSuffix(strings.TrimRight(def, " \t\r"), "\\") + " " + lines[i+1]
				i++
				extra++
			}
			mname, m, err := parseDefine(def)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			e.macros[mname] = m
			b.WriteString(strings.Repeat("\n", extra+1))
			continue
		case "undef":
			delete(e.macros, firstWord(rest))
			b.WriteString("\n")
			continue
		case "include":
			inc, err := e.resolveInclude(path, rest)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			if err := e.file(inc, b); err != nil {
				return err
			}
			if !strings.HasSuffix(b.String(), "\n") {
				b.WriteString("\n")
			}
			continue
		default:
			if dropped[name] {
				if i < len(lines)-1 {
					b.WriteString("\n")
				}
				continue
			}
		}

		out, err := e.expand(line, 0)
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		b.WriteString(out)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	if len(conds) != 0 {
		return fmt.Errorf("%s: unterminated `ifdef", path)
	}
	return nil
}

// dropped lists compiler directives that carry no structure.
var dropped = map[string]bool{
	"timescale": true, "default_nettype": true, "resetall": true,
	"celldefine": true, "endcelldefine": true, "unconnected_drive": true,
	"nounconnected_drive": true, "pragma": true, "line": true,
	"begin_keywords": true, "end_keywords": true,
}

// directive returns the directive name of a line starting with a backtick,
// and the remainder of the line.
func directive(trimmed string) (name, rest string) {
	if !strings.HasPrefix(trimmed, "`") {
		return "", ""
	}
	end := 1
	for end < len(trimmed) && isIdentByte(trimmed[end]) {
		end++
	}
	return trimmed[1:end], strings.TrimSpace(trimmed[end:])
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		// strip a trailing line comment glued to the name
		w, _, _ := strings.Cut(f[0], "//")
		return w
	}
	return ""
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func parseDefine(def string) (string, macro, error) {
	i := 0
	for i < len(def) && isIdentByte(def[i]) {
		i++
	}
	name := def[:i]
	if name == "" {
		return "", macro{}, fmt.Errorf("`define without a name")
	}
	var m macro
	rest := def[i:]
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return "", macro{}, fmt.Errorf("unterminated parameter list in `define %s", name)
		}
		m.fn = true
		for _, p := range strings.Split(rest[1:end], ",") {
			if p = strings.TrimSpace(p); p != "" {
				p, _, _ = strings.Cut(p, "=")
				m.params = append(m.params, strings.TrimSpace(p))
			}
		}
		rest = rest[end+1:]
	}
	m.body = strings.TrimSpace(stripLineComment(rest))
	return name, m, nil
}

func stripLineComment(s string) string {
	if i := strings.Index(s, "//"); i >= 0 {
		return s[:i]
	}
	return s
}

func (e *expander) resolveInclude(from, rest string) (string, error) {
	name := strings.TrimSpace(rest)
	name = strings.Trim(firstQuoted(name), "\"<>")
	if name == "" {
		return "", fmt.Errorf("`include without a file name")
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	candidates := append([]string{filepath.Dir(from)}, e.includeDirs...)
	for _, dir := range candidates {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("include file %q not found", name)
}

func firstQuoted(s string) string {
	if strings.HasPrefix(s, "\"") {
		if end := strings.IndexByte(s[1:], '"'); end >= 0 {
			return s[:end+2]
		}
	}
	return firstWord(s)
}

// expand replaces macro uses in s. Unknown macros are left in place.
func (e *expander) expand(s string, depth int) (string, error) {
	if depth > maxExpandDepth {
		return "", fmt.Errorf("macro expansion too deep")
	}
	if !strings.Contains(s, "`") {
		return s, nil
	}
	var b strings.Builder
	inString := false
	for i := 0; i < len(s); {
		c := s[i]
		if c == '"' {
			inString = !inString
		}
		if c != '`' || inString {
			if !inString && c == '/' && i+1 < len(s) && s[i+1] == '/' {
				b.WriteString(s[i:])
				break
			}
			b.WriteByte(c)
			i++
			continue
		}
		j := i + 1
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		name := s[i+1 : j]
		m, ok := e.macros[name]
		if !ok {
			b.WriteString(s[i:j])
			i = j
			continue
		}
		body := m.body
		if m.fn {
			args, end, err := macroArgs(s, j)
			if err != nil {
				return "", fmt.Errorf("macro %s: %w", name, err)
			}
			body = substitute(body, m.params, args)
			j = end
		}
		exp, err := e.expand(body, depth+1)
		if err != nil {
			return "", err
		}
		b.WriteString(exp)
		i = j
	}
	return b.String(), nil
}

// macroArgs parses "(a, b(c), d)" starting at s[i] (after optional blanks)
// and returns the arguments and the index just past the closing parenthesis.
func macroArgs(s string, i int) ([]string, int, error) {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i >= len(s) || s[i] != '(' {
		return nil, i, fmt.Errorf("missing arguments")
	}
	var args []string
	depth := 0
	start := i + 1
	for k := i; k < len(s); k++ {
		switch s[k] {
		case '(', '{', '[':
			depth++
		case ')', '}', ']':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:k]))
				return args, k + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(s[start:k]))
				start = k + 1
			}
		}
	}
	return nil, i, fmt.Errorf("unterminated arguments")
}

// substitute replaces whole-word parameter names in body.
func substitute(body string, params, args []string) string {
	if len(params) == 0 {
		return body
	}
	val := make(map[string]string, len(params))
	for k, p := range params {
		if k < len(args) {
			val[p] = args[k]
		}
	}
	var b strings.Builder
	for i := 0; i < len(body); {
		if !isIdentByte(body[i]) {
			b.WriteByte(body[i])
			i++
			continue
		}
		j := i
		for j < len(body) && isIdentByte(body[j]) {
			j++
		}
		word := body[i:j]
		if v, ok := val[word]; ok && (i == 0 || body[i-1] != '`') {
			b.WriteString(v)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}
