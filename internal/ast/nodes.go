package ast

import "strings"

func (*Source) Kind() string       { return "Source" }
func (*ModuleDef) Kind() string    { return "ModuleDef" }
func (*Port) Kind() string         { return "Port" }
func (*Range) Kind() string        { return "Width" }
func (*InstanceList) Kind() string { return "InstanceList" }
func (*Instance) Kind() string     { return "Instance" }
func (*PortArg) Kind() string      { return "PortArg" }
func (*ParamArg) Kind() string     { return "ParamArg" }
func (*Assign) Kind() string       { return "Assign" }
func (*Sens) Kind() string         { return "Sens" }
func (*Initial) Kind() string      { return "Initial" }
func (*Skipped) Kind() string      { return "Skipped" }
func (*Block) Kind() string        { return "Block" }
func (*If) Kind() string           { return "IfStatement" }
func (*CaseItem) Kind() string     { return "Case" }
func (*For) Kind() string          { return "ForStatement" }
func (*EventStmt) Kind() string    { return "EventStatement" }
func (*Identifier) Kind() string   { return "Identifier" }
func (*Number) Kind() string       { return "IntConst" }
func (*String) Kind() string       { return "StringConst" }
func (*Index) Kind() string        { return "Pointer" }
func (*PartSelect) Kind() string   { return "Partselect" }
func (*Concat) Kind() string       { return "Concat" }
func (*Repeat) Kind() string       { return "Repeat" }
func (*Unary) Kind() string        { return "UnaryOperator" }
func (*Binary) Kind() string       { return "Operator" }
func (*Ternary) Kind() string      { return "Cond" }
func (*Call) Kind() string         { return "FunctionCall" }

func (p *Parameter) Kind() string {
	if p.Local {
		return "Localparam"
	}
	return "Parameter"
}

func (d *Decl) Kind() string {
	s := string(d.Keyword)
	if s == "" {
		return "Decl"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *Always) Kind() string {
	switch a.Keyword {
	case "always_ff":
		return "AlwaysFF"
	case "always_comb":
		return "AlwaysComb"
	case "always_latch":
		return "AlwaysLatch"
	}
	return "Always"
}

func (c *Case) Kind() string {
	switch c.Keyword {
	case "casez":
		return "CasezStatement"
	case "casex":
		return "CasexStatement"
	}
	return "CaseStatement"
}

func (a *ProcAssign) Kind() string {
	if a.Nonblocking {
		return "NonblockingSubstitution"
	}
	return "BlockingSubstitution"
}

// nodes collects non-nil children. Typed nil pointers are filtered by the
// callers, which only pass values they have checked.
type nodes []Node

func (ns *nodes) add(n Node) {
	if n != nil {
		*ns = append(*ns, n)
	}
}

func (ns *nodes) expr(e Expr) {
	if e != nil {
		*ns = append(*ns, e)
	}
}

func (ns *nodes) stmt(s Stmt) {
	if s != nil {
		*ns = append(*ns, s)
	}
}

func (ns *nodes) rng(r *Range) {
	if r != nil {
		*ns = append(*ns, r)
	}
}

func (s *Source) Children() []Node {
	var out nodes
	for _, m := range s.Modules {
		out.add(m)
	}
	for _, sk := range s.Skipped {
		out.add(sk)
	}
	return out
}

func (m *ModuleDef) Children() []Node {
	var out nodes
	for _, p := range m.Params {
		out.add(p)
	}
	for _, p := range m.Ports {
		out.add(p)
	}
	out = append(out, m.Items...)
	return out
}

func (p *Parameter) Children() []Node {
	var out nodes
	out.rng(p.Range)
	out.expr(p.Value)
	return out
}

func (*Port) Children() []Node { return nil }

func (r *Range) Children() []Node {
	var out nodes
	out.expr(r.MSB)
	out.expr(r.LSB)
	return out
}

func (d *Decl) Children() []Node {
	var out nodes
	out.rng(d.Range)
	out.rng(d.Array)
	out.expr(d.Init)
	return out
}

func (l *InstanceList) Children() []Node {
	var out nodes
	for _, p := range l.Params {
		out.add(p)
	}
	for _, i := range l.Instances {
		out.add(i)
	}
	return out
}

func (i *Instance) Children() []Node {
	var out nodes
	out.rng(i.Array)
	for _, p := range i.Ports {
		out.add(p)
	}
	return out
}

func (p *PortArg) Children() []Node {
	var out nodes
	out.expr(p.Expr)
	return out
}

func (p *ParamArg) Children() []Node {
	var out nodes
	out.expr(p.Value)
	return out
}

func (a *Assign) Children() []Node {
	var out nodes
	out.expr(a.LHS)
	out.expr(a.RHS)
	return out
}

func (a *Always) Children() []Node {
	var out nodes
	for _, s := range a.Sens {
		out.add(s)
	}
	out.stmt(a.Body)
	return out
}

func (s *Sens) Children() []Node {
	var out nodes
	out.expr(s.Expr)
	return out
}

func (i *Initial) Children() []Node {
	var out nodes
	out.stmt(i.Body)
	return out
}

func (*Skipped) Children() []Node { return nil }

func (b *Block) Children() []Node {
	var out nodes
	for _, s := range b.Stmts {
		out.stmt(s)
	}
	return out
}

func (i *If) Children() []Node {
	var out nodes
	out.expr(i.Cond)
	out.stmt(i.Then)
	out.stmt(i.Else)
	return out
}

func (c *Case) Children() []Node {
	var out nodes
	out.expr(c.Subject)
	for _, it := range c.Items {
		out.add(it)
	}
	return out
}

func (c *CaseItem) Children() []Node {
	var out nodes
	for _, e := range c.Exprs {
		out.expr(e)
	}
	out.stmt(c.Body)
	return out
}

func (a *ProcAssign) Children() []Node {
	var out nodes
	out.expr(a.LHS)
	out.expr(a.RHS)
	return out
}

func (f *For) Children() []Node {
	var out nodes
	if f.Init != nil {
		out.add(f.Init)
	}
	out.expr(f.Cond)
	if f.Step != nil {
		out.add(f.Step)
	}
	out.stmt(f.Body)
	return out
}

func (e *EventStmt) Children() []Node {
	var out nodes
	for _, s := range e.Sens {
		out.add(s)
	}
	out.stmt(e.Body)
	return out
}

func (*Identifier) Children() []Node { return nil }
func (*Number) Children() []Node     { return nil }
func (*String) Children() []Node     { return nil }

func (i *Index) Children() []Node {
	var out nodes
	out.expr(i.X)
	out.expr(i.Index)
	return out
}

func (p *PartSelect) Children() []Node {
	var out nodes
	out.expr(p.X)
	out.expr(p.Left)
	out.expr(p.Right)
	return out
}

func (c *Concat) Children() []Node {
	var out nodes
	for _, e := range c.Items {
		out.expr(e)
	}
	return out
}

func (r *Repeat) Children() []Node {
	var out nodes
	out.expr(r.Count)
	for _, e := range r.Items {
		out.expr(e)
	}
	return out
}

func (u *Unary) Children() []Node {
	var out nodes
	out.expr(u.X)
	return out
}

func (b *Binary) Children() []Node {
	var out nodes
	out.expr(b.X)
	out.expr(b.Y)
	return out
}

func (t *Ternary) Children() []Node {
	var out nodes
	out.expr(t.Cond)
	out.expr(t.Then)
	out.expr(t.Else)
	return out
}

func (c *Call) Children() []Node {
	var out nodes
	for _, a := range c.Args {
		out.expr(a)
	}
	return out
}
