package parser

import (
	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// parseStmt parses one procedural statement. A null statement yields nil.
func (p *parser) parseStmt() ast.Stmt {
	t := p.peek()
	switch {
	case p.is(";"):
		p.next()
		return nil
	case p.is("begin"):
		return p.parseBlock("begin", "end")
	case p.is("fork"):
		return p.parseBlock("fork", "join", "join_any", "join_none")
	case p.isAny("unique", "unique0", "priority"):
		p.next()
		return p.parseStmt()
	case p.is("if"):
		return p.parseIf()
	case p.isAny("case", "casez", "casex"):
		return p.parseCase()
	case p.is("for"):
		return p.parseFor()
	case p.isAny("while", "repeat"):
		p.next()
		p.expect("(")
		cond := p.parseExpr()
		p.expect(")")
		return &ast.For{Span: ast.At(t.Pos), Cond: cond, Body: p.parseStmt()}
	case p.is("do"):
		p.next()
		body := p.parseStmt()
		p.expect("while")
		p.expect("(")
		cond := p.parseExpr()
		p.expect(")")
		p.expect(";")
		return &ast.For{Span: ast.At(t.Pos), Cond: cond, Body: body}
	case p.is("forever"):
		p.next()
		return p.parseStmt()
	case p.is("@"):
		return p.parseEvent()
	case p.is("#"):
		p.next()
		p.skipDelayValue()
		return p.parseStmt()
	case p.is("wait"):
		p.next()
		p.expect("(")
		cond := p.parseExpr()
		p.expect(")")
		return &ast.If{Span: ast.At(t.Pos), Cond: cond, Then: p.parseStmt()}
	case p.isAny("disable", "->", "release", "deassign"):
		p.skipPast(";")
		return nil
	case p.isAny("assert", "assume", "cover"):
		p.skipPast(";")
		if p.accept("else") {
			p.parseStmt()
		}
		return nil
	case p.isAny("assign", "force"):
		p.next()
		return p.parseAssignStmt(true)
	case t.Type == SysIdent:
		p.skipPast(";")
		return nil
	case t.Type == Ident && !keywords[t.Text], p.is("{"), t.Type == Directive:
		if t.Type != Op && (tokenIs(p.peekN(1), "(") || tokenIs(p.peekN(1), ";")) {
			// task enable
			p.skipPast(";")
			return nil
		}
		return p.parseAssignStmt(true)
	}
	p.errorf(t, "unexpected %s in statement", t)
	return nil
}

func (p *parser) parseBlock(open string, closers ...string) ast.Stmt {
	start := p.expect(open)
	b := &ast.Block{Span: ast.At(start.Pos)}
	if p.accept(":") {
		b.Name = p.ident().Text
	}
	for !p.isAny(closers...) {
		if p.peek().Type == EOF {
			p.errorf(start, "missing %s", closers[0])
		}
		if s := p.parseStmt(); s != nil {
			b.Stmts = append(b.Stmts, s)
		}
	}
	p.next()
	if p.accept(":") {
		p.ident()
	}
	return b
}

func (p *parser) parseIf() ast.Stmt {
	start := p.expect("if")
	p.expect("(")
	s := &ast.If{Span: ast.At(start.Pos), Cond: p.parseExpr()}
	p.expect(")")
	s.Then = p.parseStmt()
	if p.accept("else") {
		s.Else = p.parseStmt()
	}
	return s
}

func (p *parser) parseCase() ast.Stmt {
	kw := p.next()
	c := &ast.Case{Span: ast.At(kw.Pos), Keyword: kw.Text}
	p.expect("(")
	c.Subject = p.parseExpr()
	p.expect(")")
	p.accept("inside")
	for !p.is("endcase") {
		t := p.peek()
		if t.Type == EOF {
			p.errorf(kw, "missing endcase")
		}
		item := &ast.CaseItem{Span: ast.At(t.Pos)}
		if p.accept("default") {
			p.accept(":")
		} else {
			for {
				item.Exprs = append(item.Exprs, p.parseExpr())
				if !p.accept(",") {
					break
				}
			}
			p.expect(":")
		}
		item.Body = p.parseStmt()
		c.Items = append(c.Items, item)
	}
	p.next()
	return c
}

func (p *parser) parseFor() ast.Stmt {
	start := p.expect("for")
	p.expect("(")
	f := &ast.For{Span: ast.At(start.Pos)}
	if !p.is(";") {
		// loop variable declared in the header
		if t := p.peek(); t.Type == Ident && varKinds[t.Text] != "" {
			p.next()
		}
		f.Init = p.parseAssignStmt(false)
	}
	p.expect(";")
	if !p.is(";") {
		f.Cond = p.parseExpr()
	}
	p.expect(";")
	if !p.is(")") {
		f.Step = p.parseAssignStmt(false)
	}
	p.expect(")")
	f.Body = p.parseStmt()
	return f
}

func (p *parser) parseEvent() ast.Stmt {
	at := p.expect("@")
	ev := &ast.EventStmt{Span: ast.At(at.Pos)}
	switch {
	case p.accept("*"):
		ev.Star = true
	case p.accept("("):
		if p.accept("*") {
			ev.Star = true
		} else {
			ev.Sens = p.parseSensList()
		}
		p.expect(")")
	default:
		t := p.ident()
		ev.Sens = []*ast.Sens{{Span: ast.At(t.Pos), Expr: &ast.Identifier{Span: ast.At(t.Pos), Name: t.Text}}}
	}
	ev.Body = p.parseStmt()
	return ev
}

func (p *parser) parseSensList() []*ast.Sens {
	var out []*ast.Sens
	for {
		t := p.peek()
		s := &ast.Sens{Span: ast.At(t.Pos)}
		if p.isAny("posedge", "negedge", "edge") {
			s.Edge = p.next().Text
		}
		s.Expr = p.parseExpr()
		out = append(out, s)
		if !p.accept("or") && !p.accept(",") {
			return out
		}
	}
}

var compoundOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true, "<<<": true, ">>>": true,
}

// parseAssignStmt parses "lvalue = expr", "lvalue <= expr", "lvalue op= expr"
// and "lvalue++". The terminating semicolon is consumed when semi is set.
func (p *parser) parseAssignStmt(semi bool) *ast.ProcAssign {
	lhs := p.parseLValue()
	a := &ast.ProcAssign{Span: ast.At(lhs.Pos()), LHS: lhs}
	t := p.peek()
	switch {
	case p.accept("="):
		p.skipIntraDelay()
		a.RHS = p.parseExpr()
	case p.accept("<="):
		a.Nonblocking = true
		p.skipIntraDelay()
		a.RHS = p.parseExpr()
	case (p.is("+") || p.is("-")) && tokenIs(p.peekN(1), t.Text):
		p.next()
		p.next()
		one := &ast.Number{Span: ast.At(t.Pos), Text: "1", Value: 1, Known: true}
		a.RHS = &ast.Binary{Span: ast.At(t.Pos), Op: t.Text, X: lhs, Y: one}
	case t.Type == Op && compoundOps[t.Text] && tokenIs(p.peekN(1), "="):
		p.next()
		p.next()
		a.RHS = &ast.Binary{Span: ast.At(t.Pos), Op: t.Text, X: lhs, Y: p.parseExpr()}
	default:
		p.errorf(t, "expected assignment, found %s", t)
	}
	if semi {
		p.expect(";")
	}
	return a
}

func (p *parser) skipIntraDelay() {
	switch {
	case p.accept("#"):
		p.skipDelayValue()
	case p.is("@"):
		p.next()
		if p.accept("(") {
			p.skipBalanced(")")
		} else {
			p.next()
		}
	case p.is("repeat"):
		p.next()
		p.expect("(")
		p.skipBalanced(")")
		p.expect("@")
		if p.accept("(") {
			p.skipBalanced(")")
		}
	}
}

// parseLValue parses an assignment target: a possibly selected name or a
// concatenation of targets.
func (p *parser) parseLValue() ast.Expr {
	t := p.peek()
	switch {
	case p.is("{"):
		p.next()
		c := &ast.Concat{Span: ast.At(t.Pos)}
		for {
			c.Items = append(c.Items, p.parseLValue())
			if !p.accept(",") {
				break
			}
		}
		p.expect("}")
		return c
	case t.Type == Directive:
		p.next()
		return p.parseSelects(&ast.Identifier{Span: ast.At(t.Pos), Name: t.Text})
	}
	name := p.ident()
	return p.parseSelects(&ast.Identifier{Span: ast.At(name.Pos), Name: name.Text})
}
