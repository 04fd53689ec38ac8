package parser

import (
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// binary operator precedence, higher binds tighter.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4, "^~": 4, "~^": 4,
	"&":  5,
	"==": 6, "!=": 6, "===": 6, "!==": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8, "<<<": 8, ">>>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
	"**": 11,
}

var unaryOps = map[string]bool{
	"+": true, "-": true, "!": true, "~": true,
	"&": true, "~&": true, "|": true, "~|": true, "^": true, "~^": true, "^~": true,
}

func (p *parser) parseExpr() ast.Expr {
	cond := p.parseBinary(1)
	if !p.is("?") {
		return cond
	}
	p.next()
	then := p.parseExpr()
	p.expect(":")
	return &ast.Ternary{Span: ast.At(cond.Pos()), Cond: cond, Then: then, Else: p.parseExpr()}
}

func (p *parser) parseBinary(minPrec int) ast.Expr {
	x := p.parseUnary()
	for {
		t := p.peek()
		prec, ok := binaryPrec[t.Text]
		if t.Type != Op || !ok || prec < minPrec {
			return x
		}
		p.next()
		y := p.parseBinary(prec + 1)
		x = &ast.Binary{Span: ast.At(x.Pos()), Op: t.Text, X: x, Y: y}
	}
}

func (p *parser) parseUnary() ast.Expr {
	t := p.peek()
	if t.Type == Op && unaryOps[t.Text] {
		p.next()
		return &ast.Unary{Span: ast.At(t.Pos), Op: t.Text, X: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() ast.Expr {
	t := p.peek()
	switch {
	case t.Type == Number:
		p.next()
		return numberLiteral(t)
	case t.Type == String:
		p.next()
		return &ast.String{Span: ast.At(t.Pos), Value: t.Text}
	case t.Type == SysIdent, t.Type == Directive:
		p.next()
		if p.is("(") {
			return p.parseSelects(p.parseCall(t))
		}
		return p.parseSelects(&ast.Identifier{Span: ast.At(t.Pos), Name: t.Text})
	case t.Type == Ident && !keywords[t.Text]:
		p.next()
		if p.is("(") {
			return p.parseCall(t)
		}
		if p.is("'") && tokenIs(p.peekN(1), "(") {
			// size or type cast: the operand carries the signal
			p.next()
			p.next()
			x := p.parseExpr()
			p.expect(")")
			return x
		}
		return p.parseSelects(&ast.Identifier{Span: ast.At(t.Pos), Name: t.Text})
	case p.is("("):
		p.next()
		x := p.parseExpr()
		if p.accept(":") {
			// min:typ:max, keep typ
			x = p.parseExpr()
			p.expect(":")
			p.parseExpr()
		}
		p.expect(")")
		return p.parseSelects(x)
	case p.is("{"):
		return p.parseSelects(p.parseConcat())
	case p.is("'"):
		p.next()
		if p.is("{") {
			return p.parseConcat()
		}
		n := p.peek()
		if n.Type != Number {
			p.errorf(n, "expected literal after \"'\", found %s", n)
		}
		p.next()
		// unbased unsized fill literal such as '0 or '1
		return &ast.Number{Span: ast.At(t.Pos), Text: "'" + n.Text}
	}
	p.errorf(t, "unexpected %s in expression", t)
	return nil
}

func (p *parser) parseCall(name Token) ast.Expr {
	p.expect("(")
	c := &ast.Call{Span: ast.At(name.Pos), Name: name.Text}
	if p.accept(")") {
		return c
	}
	for {
		c.Args = append(c.Args, p.parseExpr())
		if !p.accept(",") {
			break
		}
	}
	p.expect(")")
	return c
}

func (p *parser) parseConcat() ast.Expr {
	open := p.expect("{")
	if p.accept("}") {
		return &ast.Concat{Span: ast.At(open.Pos)}
	}
	first := p.parseExpr()
	if p.is("{") {
		p.next()
		r := &ast.Repeat{Span: ast.At(open.Pos), Count: first}
		for {
			r.Items = append(r.Items, p.parseExpr())
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		p.expect("}")
		return r
	}
	c := &ast.Concat{Span: ast.At(open.Pos), Items: []ast.Expr{first}}
	for p.accept(",") {
		c.Items = append(c.Items, p.parseExpr())
	}
	p.expect("}")
	return c
}

// parseSelects parses any number of trailing [..] selects on x.
func (p *parser) parseSelects(x ast.Expr) ast.Expr {
	for p.is("[") {
		open := p.next()
		left := p.parseExpr()
		switch {
		case p.isAny(":", "+:", "-:"):
			op := p.next().Text
			x = &ast.PartSelect{Span: ast.At(open.Pos), X: x, Op: op, Left: left, Right: p.parseExpr()}
		default:
			x = &ast.Index{Span: ast.At(open.Pos), X: x, Index: left}
		}
		p.expect("]")
	}
	return x
}

func numberLiteral(t Token) *ast.Number {
	n := &ast.Number{Span: ast.At(t.Pos), Text: t.Text}
	n.Width, n.Value, n.Known = ParseNumber(t.Text)
	return n
}

// ParseNumber decodes a Verilog number literal. width is 0 when the literal
// is unsized; known is false when the value contains x/z digits, is a real
// number or does not fit in 64 bits.
func ParseNumber(text string) (width int, value uint64, known bool) {
	s := strings.ReplaceAll(text, "_", "")
	q := strings.IndexByte(s, '\'')
	if q < 0 {
		if strings.ContainsAny(s, ".eE") {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || f < 0 {
				return 0, 0, false
			}
			return 0, uint64(f), false
		}
		v, err := strconv.ParseUint(s, 10, 64)
		return 0, v, err == nil
	}
	if q > 0 {
		w, err := strconv.Atoi(s[:q])
		if err == nil {
			width = w
		}
	}
	rest := s[q+1:]
	if rest != "" && (rest[0] == 's' || rest[0] == 'S') {
		rest = rest[1:]
	}
	if rest == "" {
		return width, 0, false
	}
	base := 10
	switch rest[0] {
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	case 'h', 'H':
		base = 16
	}
	digits := rest[1:]
	if strings.ContainsAny(digits, "xXzZ?") {
		return width, 0, false
	}
	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return width, 0, false
	}
	if width > 0 && width < 64 {
		v &= 1<<uint(width) - 1
	}
	return width, v, true
}
