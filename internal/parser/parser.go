// Package parser is a recursive-descent parser for structural and RTL
// Verilog. It covers module headers, declarations, continuous assignments,
// procedural blocks and instantiations. Constructs it does not model
// (generate regions, functions, tasks, specify blocks) are skipped and
// recorded on the resulting tree.
package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// Builtin is the parser shipped with the tool. The zero value is ready to use.
type Builtin struct{}

// Parse reads and parses the file at path.
func (Builtin) Parse(ctx context.Context, path string) (*ast.Source, error) {
	return Parse(ctx, path)
}

// ParseSource parses already loaded (for example preprocessed) text. name is
// used for positions.
func (Builtin) ParseSource(ctx context.Context, name, src string) (*ast.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ParseString(name, src)
}

// Parse reads and parses the file at path.
func Parse(ctx context.Context, path string) (*ast.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read source")
	}
	return ParseString(path, string(data))
}

// ParseString parses src, using name for positions.
func ParseString(name, src string) (out *ast.Source, err error) {
	toks, err := Lex(name, src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, file: name}
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(parseError)
			if !ok {
				panic(r)
			}
			out, err = nil, pe.err
		}
	}()
	return p.parseSource(), nil
}

type parseError struct{ err error }

type parser struct {
	toks []Token
	i    int
	file string
}

func (p *parser) peek() Token { return p.toks[p.i] }

func (p *parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if t.Type != EOF {
		p.i++
	}
	return t
}

// is reports whether the next token is the keyword or operator text.
func (p *parser) is(text string) bool {
	return tokenIs(p.peek(), text)
}

func tokenIs(t Token, text string) bool {
	return (t.Type == Op || t.Type == Ident) && t.Text == text
}

func (p *parser) isAny(texts ...string) bool {
	for _, s := range texts {
		if p.is(s) {
			return true
		}
	}
	return false
}

func (p *parser) accept(text string) bool {
	if p.is(text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(text string) Token {
	t := p.peek()
	if !tokenIs(t, text) {
		p.errorf(t, "expected %q, found %s", text, t)
	}
	return p.next()
}

func (p *parser) ident() Token {
	t := p.peek()
	if t.Type != Ident || keywords[t.Text] {
		p.errorf(t, "expected identifier, found %s", t)
	}
	return p.next()
}

func (p *parser) errorf(t Token, format string, args ...interface{}) {
	panic(parseError{errors.Errorf("%s: %s", t.Pos, fmt.Sprintf(format, args...))})
}

func (p *parser) parseSource() *ast.Source {
	src := &ast.Source{Span: ast.At(ast.Pos{File: p.file, Line: 1, Col: 1}), File: p.file}
	for {
		t := p.peek()
		switch {
		case t.Type == EOF:
			return src
		case p.isAny("module", "macromodule"):
			src.Modules = append(src.Modules, p.parseModule())
		case p.is(";"):
			p.next()
		case p.is("primitive"):
			src.Skipped = append(src.Skipped, p.skipRegion("primitive", "endprimitive"))
		case p.is("package"):
			src.Skipped = append(src.Skipped, p.skipRegion("package", "endpackage"))
		case p.is("interface"):
			src.Skipped = append(src.Skipped, p.skipRegion("interface", "endinterface"))
		case p.isAny("timeunit", "timeprecision", "import", "typedef"):
			src.Skipped = append(src.Skipped, p.skipStatement(t.Text))
		case t.Type == Directive:
			p.next()
		default:
			p.errorf(t, "expected module, found %s", t)
		}
	}
}

func (p *parser) parseModule() *ast.ModuleDef {
	start := p.next()
	name := p.ident()
	m := &ast.ModuleDef{Span: ast.At(start.Pos), Name: name.Text}
	for p.is("import") {
		p.skipStatement("import")
	}
	if p.accept("#") {
		p.expect("(")
		p.parseParamPorts(m)
	}
	if p.accept("(") {
		p.parsePortList(m)
	}
	p.expect(";")
	for !p.is("endmodule") {
		if p.peek().Type == EOF {
			p.errorf(p.peek(), "missing endmodule for module %s", m.Name)
		}
		p.parseItem(m)
	}
	end := p.next()
	m.EndLine = end.Pos.Line
	if p.accept(":") {
		p.ident()
	}
	return m
}

// parseParamPorts parses the "#(...)" parameter port list; the opening
// parenthesis has been consumed.
func (p *parser) parseParamPorts(m *ast.ModuleDef) {
	if p.accept(")") {
		return
	}
	local := false
	for {
		if p.accept("localparam") {
			local = true
		} else if p.accept("parameter") {
			local = false
		}
		p.skipParamType()
		var rng *ast.Range
		if p.is("[") {
			rng = p.parseRange()
		}
		name := p.ident()
		prm := &ast.Parameter{Span: ast.At(name.Pos), Name: name.Text, Local: local, Range: rng}
		if p.accept("=") {
			prm.Value = p.parseExpr()
		}
		m.Params = append(m.Params, prm)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
}

var paramTypes = map[string]bool{
	"integer": true, "real": true, "realtime": true, "time": true,
	"logic": true, "bit": true, "int": true, "signed": true, "unsigned": true,
	"type": true,
}

func (p *parser) skipParamType() {
	for t := p.peek(); t.Type == Ident && paramTypes[t.Text]; t = p.peek() {
		p.next()
	}
}

var directions = map[string]ast.DeclKind{
	"input":  ast.DeclInput,
	"output": ast.DeclOutput,
	"inout":  ast.DeclInout,
}

// netKinds maps net keywords to the declaration kind they produce.
var netKinds = map[string]ast.DeclKind{
	"wire":    ast.DeclWire,
	"wand":    ast.DeclWire,
	"wor":     ast.DeclWire,
	"uwire":   ast.DeclWire,
	"tri":     ast.DeclTri,
	"tri0":    ast.DeclTri,
	"tri1":    ast.DeclTri,
	"triand":  ast.DeclTri,
	"trior":   ast.DeclTri,
	"supply0": ast.DeclSupply0,
	"supply1": ast.DeclSupply1,
}

// varKinds maps variable keywords to the declaration kind they produce.
var varKinds = map[string]ast.DeclKind{
	"reg":      ast.DeclReg,
	"logic":    ast.DeclLogic,
	"bit":      ast.DeclLogic,
	"integer":  ast.DeclInteger,
	"int":      ast.DeclInteger,
	"time":     ast.DeclInteger,
	"real":     ast.DeclInteger,
	"realtime": ast.DeclInteger,
	"genvar":   ast.DeclGenvar,
}

func isNetType(s string) bool {
	_, net := netKinds[s]
	_, v := varKinds[s]
	return net || v
}

// parsePortList parses the module header port list; the opening parenthesis
// has been consumed.
func (p *parser) parsePortList(m *ast.ModuleDef) {
	if p.accept(")") {
		return
	}
	if _, ansi := directions[p.peek().Text]; ansi && p.peek().Type == Ident {
		p.parseANSIPorts(m)
		return
	}
	for {
		switch {
		case p.is("."):
			// .ext(int) style: the external name is the port
			p.next()
			name := p.ident()
			p.expect("(")
			p.skipBalanced(")")
			m.Ports = append(m.Ports, &ast.Port{Span: ast.At(name.Pos), Name: name.Text})
		default:
			name := p.ident()
			if p.is("[") {
				p.parseRange()
			}
			m.Ports = append(m.Ports, &ast.Port{Span: ast.At(name.Pos), Name: name.Text})
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
}

func (p *parser) parseANSIPorts(m *ast.ModuleDef) {
	var (
		dir     ast.DeclKind
		netType string
		signed  bool
		rng     *ast.Range
	)
	var decls []ast.Node
	for {
		t := p.peek()
		if d, ok := directions[t.Text]; ok && t.Type == Ident {
			p.next()
			dir, netType, signed, rng = d, "", false, nil
			if isNetType(p.peek().Text) {
				netType = p.next().Text
			}
			signed = p.acceptSigned()
			if p.is("[") {
				rng = p.parseRange()
			}
		} else if isNetType(t.Text) && t.Type == Ident {
			p.next()
			netType, signed, rng = t.Text, false, nil
			signed = p.acceptSigned()
			if p.is("[") {
				rng = p.parseRange()
			}
		} else if p.is("[") {
			rng = p.parseRange()
		}
		name := p.ident()
		d := &ast.Decl{
			Span:    ast.At(name.Pos),
			Keyword: dir,
			NetType: netType,
			Signed:  signed,
			Range:   rng,
			Name:    name.Text,
		}
		if p.is("[") {
			d.Array = p.parseRange()
		}
		if p.accept("=") {
			d.Init = p.parseExpr()
		}
		m.Ports = append(m.Ports, &ast.Port{Span: ast.At(name.Pos), Name: name.Text})
		decls = append(decls, d)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	m.Items = append(decls, m.Items...)
}

func (p *parser) acceptSigned() bool {
	if p.accept("signed") {
		return true
	}
	p.accept("unsigned")
	return false
}

var gatePrimitives = map[string]bool{
	"and": true, "nand": true, "or": true, "nor": true, "xor": true, "xnor": true,
	"buf": true, "not": true, "bufif0": true, "bufif1": true, "notif0": true, "notif1": true,
	"pullup": true, "pulldown": true,
}

// IsGatePrimitive reports whether name is a built-in gate.
func IsGatePrimitive(name string) bool { return gatePrimitives[name] }

func (p *parser) parseItem(m *ast.ModuleDef) {
	t := p.peek()
	if t.Type == Directive {
		p.next()
		return
	}
	if t.Type != Ident {
		if p.accept(";") {
			return
		}
		p.errorf(t, "unexpected %s in module %s", t, m.Name)
	}
	switch kw := t.Text; {
	case directions[kw] != "":
		p.parseDecl(m)
	case isNetType(kw):
		p.parseDecl(m)
	case kw == "parameter" || kw == "localparam":
		m.Params = append(m.Params, p.parseParameters()...)
	case kw == "assign":
		p.parseAssign(m)
	case kw == "always" || kw == "always_ff" || kw == "always_comb" || kw == "always_latch":
		m.Items = append(m.Items, p.parseAlways())
	case kw == "initial":
		p.next()
		m.Items = append(m.Items, &ast.Initial{Span: ast.At(t.Pos), Body: p.parseStmt()})
	case kw == "final":
		p.next()
		p.parseStmt()
		m.Items = append(m.Items, &ast.Skipped{Span: ast.At(t.Pos), What: "final", EndLine: p.lastLine()})
	case kw == "generate":
		m.Items = append(m.Items, p.skipRegion("generate", "endgenerate"))
	case kw == "function":
		m.Items = append(m.Items, p.skipRegion("function", "endfunction"))
	case kw == "task":
		m.Items = append(m.Items, p.skipRegion("task", "endtask"))
	case kw == "specify":
		m.Items = append(m.Items, p.skipRegion("specify", "endspecify"))
	case kw == "for" || kw == "if" || kw == "case":
		m.Items = append(m.Items, p.skipGenerateConstruct())
	case kw == "defparam" || kw == "typedef" || kw == "import" || kw == "timeunit" || kw == "timeprecision":
		m.Items = append(m.Items, p.skipStatement(kw))
	case gatePrimitives[kw] || !keywords[kw]:
		m.Items = append(m.Items, p.parseInstances())
	default:
		p.errorf(t, "unexpected %s in module %s", t, m.Name)
	}
}

func (p *parser) lastLine() int {
	if p.i == 0 {
		return 1
	}
	return p.toks[p.i-1].Pos.Line
}

func (p *parser) parseDecl(m *ast.ModuleDef) {
	kw := p.next()
	var (
		kind    ast.DeclKind
		netType string
		net     bool
	)
	if d, ok := directions[kw.Text]; ok {
		kind = d
		if isNetType(p.peek().Text) && p.peek().Type == Ident {
			netType = p.next().Text
		}
		_, isVar := varKinds[netType]
		net = !isVar
	} else if k, ok := netKinds[kw.Text]; ok {
		kind, net = k, true
	} else {
		kind = varKinds[kw.Text]
	}
	if net && p.is("(") {
		// drive or charge strength
		p.next()
		p.skipBalanced(")")
	}
	signed := p.acceptSigned()
	var rng *ast.Range
	if p.is("[") {
		rng = p.parseRange()
		for p.is("[") {
			// additional packed dimensions are not modelled
			p.parseRange()
		}
	}
	if p.accept("#") {
		p.skipDelayValue()
	}
	for {
		name := p.ident()
		d := &ast.Decl{
			Span:    ast.At(name.Pos),
			Keyword: kind,
			NetType: netType,
			Signed:  signed,
			Range:   rng,
			Name:    name.Text,
		}
		for p.is("[") {
			arr := p.parseRange()
			if d.Array == nil {
				d.Array = arr
			}
		}
		m.Items = append(m.Items, d)
		if p.accept("=") {
			init := p.parseExpr()
			if net {
				m.Items = append(m.Items, &ast.Assign{
					Span:     ast.At(name.Pos),
					LHS:      &ast.Identifier{Span: ast.At(name.Pos), Name: name.Text},
					RHS:      init,
					Implicit: true,
				})
			} else {
				d.Init = init
			}
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
}

func (p *parser) parseParameters() []*ast.Parameter {
	kw := p.next()
	local := kw.Text == "localparam"
	p.skipParamType()
	var rng *ast.Range
	if p.is("[") {
		rng = p.parseRange()
	}
	var out []*ast.Parameter
	for {
		name := p.ident()
		p.expect("=")
		out = append(out, &ast.Parameter{
			Span:  ast.At(name.Pos),
			Name:  name.Text,
			Local: local,
			Range: rng,
			Value: p.parseExpr(),
		})
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
	return out
}

func (p *parser) parseAssign(m *ast.ModuleDef) {
	p.next()
	if p.is("(") {
		p.next()
		p.skipBalanced(")")
	}
	if p.accept("#") {
		p.skipDelayValue()
	}
	for {
		lhs := p.parseLValue()
		p.expect("=")
		rhs := p.parseExpr()
		m.Items = append(m.Items, &ast.Assign{Span: ast.At(lhs.Pos()), LHS: lhs, RHS: rhs})
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
}

func (p *parser) parseAlways() *ast.Always {
	kw := p.next()
	a := &ast.Always{Span: ast.At(kw.Pos), Keyword: kw.Text}
	body := p.parseStmt()
	a.EndLine = p.lastLine()
	if ev, ok := body.(*ast.EventStmt); ok {
		a.Sens, a.Star, a.Body = ev.Sens, ev.Star, ev.Body
		return a
	}
	a.Body = body
	return a
}

var strengths = map[string]bool{
	"supply0": true, "strong0": true, "pull0": true, "weak0": true, "highz0": true,
	"supply1": true, "strong1": true, "pull1": true, "weak1": true, "highz1": true,
}

func (p *parser) parseInstances() *ast.InstanceList {
	mod := p.next()
	gate := gatePrimitives[mod.Text]
	il := &ast.InstanceList{Span: ast.At(mod.Pos), Module: mod.Text}
	if gate && p.is("(") && strengths[p.peekN(1).Text] {
		p.next()
		p.skipBalanced(")")
	}
	if p.accept("#") {
		if gate {
			p.skipDelayValue()
		} else if p.accept("(") {
			il.Params = p.parseParamArgs()
		} else {
			v := p.parsePrimary()
			il.Params = []*ast.ParamArg{{Span: ast.At(v.Pos()), Value: v}}
		}
	}
	for {
		start := p.peek()
		inst := &ast.Instance{Span: ast.At(start.Pos), Module: mod.Text, Params: il.Params}
		if start.Type == Ident {
			inst.Name = p.ident().Text
			if p.is("[") {
				inst.Array = p.parseRange()
			}
		} else if !gate {
			p.errorf(start, "expected instance name of %s, found %s", mod.Text, start)
		}
		p.expect("(")
		inst.Ports = p.parsePortArgs()
		il.Instances = append(il.Instances, inst)
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
	return il
}

// parsePortArgs parses instance connections up to and including the closing
// parenthesis.
func (p *parser) parsePortArgs() []*ast.PortArg {
	var out []*ast.PortArg
	if p.accept(")") {
		return out
	}
	if p.is(".") {
		for {
			dot := p.expect(".")
			// implicit .* connections are not expanded
			if !p.accept("*") {
				name := p.ident()
				arg := &ast.PortArg{Span: ast.At(dot.Pos), Port: name.Text, Index: len(out)}
				if p.accept("(") {
					if !p.is(")") {
						arg.Expr = p.parseExpr()
					}
					p.expect(")")
				} else {
					arg.Expr = &ast.Identifier{Span: ast.At(name.Pos), Name: name.Text}
				}
				out = append(out, arg)
			}
			if !p.accept(",") {
				break
			}
		}
		p.expect(")")
		return out
	}
	for idx := 0; ; idx++ {
		arg := &ast.PortArg{Span: ast.At(p.peek().Pos), Index: idx}
		if !p.is(",") && !p.is(")") {
			arg.Expr = p.parseExpr()
		}
		out = append(out, arg)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return out
}

func (p *parser) parseParamArgs() []*ast.ParamArg {
	var out []*ast.ParamArg
	if p.accept(")") {
		return out
	}
	for idx := 0; ; idx++ {
		start := p.peek()
		arg := &ast.ParamArg{Span: ast.At(start.Pos), Index: idx}
		if p.accept(".") {
			arg.Name = p.ident().Text
			p.expect("(")
			if !p.is(")") {
				arg.Value = p.parseExpr()
			}
			p.expect(")")
		} else {
			arg.Value = p.parseExpr()
		}
		out = append(out, arg)
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return out
}

func (p *parser) parseRange() *ast.Range {
	open := p.expect("[")
	r := &ast.Range{Span: ast.At(open.Pos)}
	first := p.parseExpr()
	if p.accept(":") {
		r.MSB, r.LSB = first, p.parseExpr()
	} else {
		// [N] is shorthand for [N-1:0]
		one := &ast.Number{Span: ast.At(first.Pos()), Text: "1", Value: 1, Known: true}
		r.MSB = &ast.Binary{Span: ast.At(first.Pos()), Op: "-", X: first, Y: one}
		r.LSB = &ast.Number{Span: ast.At(first.Pos()), Text: "0", Known: true}
	}
	p.expect("]")
	return r
}

// skipRegion skips from the opening keyword to its matching closing keyword.
func (p *parser) skipRegion(open, close string) *ast.Skipped {
	start := p.next()
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.Type == EOF:
			p.errorf(start, "missing %s", close)
		case tokenIs(t, open):
			depth++
		case tokenIs(t, close):
			depth--
		}
	}
	if p.accept(":") {
		p.next()
	}
	return &ast.Skipped{Span: ast.At(start.Pos), What: open, EndLine: p.lastLine()}
}

// skipStatement skips to the terminating semicolon, honouring nesting.
func (p *parser) skipStatement(what string) *ast.Skipped {
	start := p.peek()
	p.skipPast(";")
	return &ast.Skipped{Span: ast.At(start.Pos), What: what, EndLine: p.lastLine()}
}

// skipPast consumes tokens through the first end token found outside any
// bracket pair.
func (p *parser) skipPast(end string) {
	depth := 0
	for {
		t := p.next()
		switch {
		case t.Type == EOF:
			p.errorf(t, "expected %q", end)
		case depth == 0 && tokenIs(t, end):
			return
		case tokenIs(t, "("), tokenIs(t, "["), tokenIs(t, "{"):
			depth++
		case tokenIs(t, ")"), tokenIs(t, "]"), tokenIs(t, "}"):
			depth--
		}
	}
}

// skipBalanced consumes tokens through the closing bracket matching one that
// has already been consumed.
func (p *parser) skipBalanced(close string) {
	p.skipPast(close)
}

func (p *parser) skipDelayValue() {
	if p.accept("(") {
		p.skipBalanced(")")
		return
	}
	p.next()
}

// skipGenerateConstruct skips a loop or conditional generate construct that
// appears directly in a module body.
func (p *parser) skipGenerateConstruct() *ast.Skipped {
	start := p.peek()
	p.skipGenerateItem()
	return &ast.Skipped{Span: ast.At(start.Pos), What: "generate", EndLine: p.lastLine()}
}

func (p *parser) skipGenerateItem() {
	switch {
	case p.is("for"), p.is("if"):
		kw := p.next()
		p.expect("(")
		p.skipBalanced(")")
		p.skipGenerateItem()
		if kw.Text == "if" && p.accept("else") {
			p.skipGenerateItem()
		}
	case p.is("case"):
		p.skipRegion("case", "endcase")
	case p.is("begin"):
		p.skipRegion("begin", "end")
	default:
		p.skipPast(";")
	}
}

var keywords = map[string]bool{
	"module": true, "macromodule": true, "endmodule": true,
	"input": true, "output": true, "inout": true,
	"wire": true, "wand": true, "wor": true, "uwire": true, "tri": true, "tri0": true, "tri1": true,
	"triand": true, "trior": true, "supply0": true, "supply1": true,
	"reg": true, "logic": true, "bit": true, "integer": true, "int": true, "time": true,
	"real": true, "realtime": true, "genvar": true, "signed": true, "unsigned": true,
	"parameter": true, "localparam": true, "defparam": true,
	"assign": true, "deassign": true, "force": true, "release": true,
	"always": true, "always_ff": true, "always_comb": true, "always_latch": true,
	"initial": true, "final": true, "begin": true, "end": true, "fork": true, "join": true,
	"join_any": true, "join_none": true,
	"if": true, "else": true, "case": true, "casez": true, "casex": true, "endcase": true,
	"default": true, "for": true, "while": true, "repeat": true, "forever": true, "do": true,
	"posedge": true, "negedge": true, "edge": true, "or": true, "wait": true, "disable": true,
	"generate": true, "endgenerate": true, "function": true, "endfunction": true,
	"task": true, "endtask": true, "specify": true, "endspecify": true,
	"primitive": true, "endprimitive": true, "package": true, "endpackage": true,
	"interface": true, "endinterface": true, "typedef": true, "import": true,
	"unique": true, "unique0": true, "priority": true,
	"timeunit": true, "timeprecision": true,
}
