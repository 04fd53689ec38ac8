package netlist

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

type builder struct {
	d    *Design
	m    *ast.ModuleDef
	opts Options
	flow *Flow

	env    Env
	params map[string]bool
	sigs   map[string]*Signal
	ranged map[string]bool
	ids    map[string]int
	loop   map[string]bool // loop variables of the block being walked

	pending []pending
	direct  []*Edge
	unknown map[string]bool
}

// pending is an instance pin connection whose direction is not known yet.
type pending struct {
	sig string
	ep  Endpoint
}

// ref is a resolved reference to (part of) a signal.
type ref struct {
	name  string
	slice Slice
	text  string
	width int
	line  int
}

func newBuilder(d *Design, m *ast.ModuleDef) *builder {
	return &builder{
		d:       d,
		m:       m,
		opts:    d.opts,
		flow:    &Flow{Module: m.Name, File: m.Pos().File},
		env:     make(Env),
		params:  make(map[string]bool),
		sigs:    make(map[string]*Signal),
		ranged:  make(map[string]bool),
		ids:     make(map[string]int),
		unknown: make(map[string]bool),
	}
}

func (b *builder) build() *Flow {
	b.declare()
	b.use()
	b.resolve()
	b.materialize()
	b.flow.reindex()
	return b.flow
}

func (b *builder) diag(rule, severity string, line int, signal, format string, args ...interface{}) {
	b.flow.Diagnostics = append(b.flow.Diagnostics, Diagnostic{
		Rule:     rule,
		Severity: severity,
		Module:   b.m.Name,
		Signal:   signal,
		File:     b.flow.File,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

// declare is the first pass: parameters and every declared name enter the
// tables before any use is looked at, so forward references resolve.
func (b *builder) declare() {
	for _, p := range b.m.Params {
		b.params[p.Name] = true
		if p.Value == nil {
			continue
		}
		if v, ok := Eval(p.Value, b.env); ok {
			b.env[p.Name] = v
		}
	}
	for _, it := range b.m.Items {
		d, ok := it.(*ast.Decl)
		if !ok || d.Keyword == ast.DeclGenvar {
			continue
		}
		b.declareOne(d)
	}
	for _, p := range b.m.Ports {
		if _, ok := b.sigs[p.Name]; ok {
			continue
		}
		b.addSignal(p.Name, "inout", Slice{Known: true}, p.Pos().Line)
		b.diag("port_direction", SeverityWarning, p.Pos().Line, p.Name,
			"port %s has no direction declaration, treated as inout", p.Name)
	}
}

func (b *builder) declareOne(d *ast.Decl) {
	rng := EvalRange(d.Range, b.env)
	if d.Keyword == ast.DeclInteger && d.Range == nil {
		rng = BitRange(31, 0)
	}
	if d.Range != nil && !rng.Known {
		b.diag("unknown_width", SeverityInfo, d.Pos().Line, d.Name,
			"width of %s cannot be evaluated", d.Name)
	}
	s, ok := b.sigs[d.Name]
	if !ok {
		s = b.addSignal(d.Name, string(d.Keyword), rng, d.Pos().Line)
		s.NetType = d.NetType
		s.Array = d.Array != nil
		b.ranged[d.Name] = d.Range != nil
		return
	}
	// "output q; reg [3:0] q;" declares one signal twice
	switch {
	case d.Keyword.IsPort() && !s.IsPort():
		if s.NetType == "" {
			s.NetType = s.Kind
		}
		s.Kind = string(d.Keyword)
	case !d.Keyword.IsPort() && s.IsPort() && s.NetType == "":
		s.NetType = string(d.Keyword)
	}
	if d.Range != nil && !b.ranged[d.Name] {
		s.Range, s.Width = rng, rng.Width()
		b.ranged[d.Name] = true
	}
	if d.Array != nil {
		s.Array = true
	}
}

func (b *builder) addSignal(name, kind string, rng Slice, line int) *Signal {
	s := &Signal{Name: name, Kind: kind, Range: rng, Width: rng.Width(), Line: line}
	b.sigs[name] = s
	b.flow.Signals = append(b.flow.Signals, s)
	return s
}

func (b *builder) addNode(n *Node) *Node {
	base := n.ID
	if c := b.ids[base]; c > 0 {
		n.ID = fmt.Sprintf("%s_%d", base, c)
	}
	b.ids[base]++
	if n.File == "" {
		n.File = b.flow.File
	}
	b.flow.Nodes = append(b.flow.Nodes, n)
	return n
}

// use is the second pass: every construct registers itself as driver or
// load of the signals it touches.
func (b *builder) use() {
	for _, p := range b.m.Ports {
		b.port(b.sigs[p.Name])
	}
	for _, it := range b.m.Items {
		switch v := it.(type) {
		case *ast.Assign:
			b.assign(v)
		case *ast.Always:
			b.always(v)
		case *ast.InstanceList:
			for _, inst := range v.Instances {
				b.instance(inst)
			}
		}
	}
}

func (b *builder) port(s *Signal) {
	if s == nil {
		return
	}
	kind := NodeKind(s.Kind)
	n := b.addNode(&Node{ID: "port." + s.Name, Kind: kind, Name: s.Name, Label: s.Name, Line: s.Line})
	ep := Endpoint{Node: n.ID, Slice: s.Range, Text: s.Name, Width: s.Width, Line: s.Line}
	switch kind {
	case KindInput:
		s.Drivers = append(s.Drivers, ep)
	case KindOutput:
		s.Loads = append(s.Loads, ep)
	case KindInout:
		ep.Bidir = true
		s.Drivers = append(s.Drivers, ep)
		s.Loads = append(s.Loads, ep)
	}
}

func (b *builder) assign(a *ast.Assign) {
	line := a.Pos().Line
	n := b.addNode(&Node{
		ID:    fmt.Sprintf("assign.L%d", line),
		Kind:  KindAssign,
		Name:  ast.ExprString(a.LHS),
		Label: "assign",
		Line:  line,
	})
	tg, rd := b.targets(a.LHS, nil, nil)
	rhs := b.reads(a.RHS, nil)
	rd = append(rd, rhs...)

	var note string
	if lw, rw := b.width(a.LHS), b.width(a.RHS); lw > 0 && rw > 0 && lw != rw {
		note = fmt.Sprintf("%d vs %d bits", lw, rw)
		b.diag("width_mismatch", SeverityWarning, line, targetName(tg),
			"assign to %s: %d-bit target driven by %d-bit expression", ast.ExprString(a.LHS), lw, rw)
	}
	for _, r := range tg {
		b.drive(r, Endpoint{Node: n.ID, Mismatch: note})
	}
	for _, r := range dedupe(rd) {
		b.load(r, Endpoint{Node: n.ID})
	}
	if len(rhs) == 0 {
		b.constant(a.RHS, n.ID, "", line)
	}
}

func targetName(tg []ref) string {
	if len(tg) == 0 {
		return ""
	}
	return tg[0].name
}

func (b *builder) always(a *ast.Always) {
	line := a.Pos().Line
	label := a.Keyword
	if sens := ast.SensString(a.Sens, a.Star); sens != "" {
		label += " @(" + sens + ")"
	}
	end := max(a.EndLine, line)
	n := b.addNode(&Node{
		ID:      fmt.Sprintf("always.L%d", line),
		Kind:    KindAlways,
		Name:    a.Keyword,
		Label:   label,
		Line:    line,
		EndLine: end,
	})

	b.loop = loopVars(a.Body)
	defer func() { b.loop = nil }()

	var tg, rd []ref
	b.stmt(a.Body, &tg, &rd)
	for _, s := range a.Sens {
		rd = b.reads(s.Expr, rd)
	}
	for _, r := range dedupe(tg) {
		b.drive(r, Endpoint{Node: n.ID})
	}
	for _, r := range dedupe(rd) {
		b.load(r, Endpoint{Node: n.ID})
	}
}

func loopVars(s ast.Stmt) map[string]bool {
	vars := make(map[string]bool)
	if s == nil {
		return vars
	}
	ast.Inspect(s, func(n ast.Node) bool {
		if f, ok := n.(*ast.For); ok && f.Init != nil {
			if id, ok := f.Init.LHS.(*ast.Identifier); ok {
				vars[id.Name] = true
			}
		}
		return true
	})
	return vars
}

func (b *builder) stmt(s ast.Stmt, tg, rd *[]ref) {
	switch x := s.(type) {
	case *ast.Block:
		for _, st := range x.Stmts {
			b.stmt(st, tg, rd)
		}
	case *ast.If:
		*rd = b.reads(x.Cond, *rd)
		b.stmt(x.Then, tg, rd)
		b.stmt(x.Else, tg, rd)
	case *ast.Case:
		*rd = b.reads(x.Subject, *rd)
		for _, it := range x.Items {
			for _, e := range it.Exprs {
				*rd = b.reads(e, *rd)
			}
			b.stmt(it.Body, tg, rd)
		}
	case *ast.ProcAssign:
		*tg, *rd = b.targets(x.LHS, *tg, *rd)
		*rd = b.reads(x.RHS, *rd)
	case *ast.For:
		*rd = b.reads(x.Cond, *rd)
		b.stmt(x.Body, tg, rd)
	case *ast.EventStmt:
		for _, sn := range x.Sens {
			*rd = b.reads(sn.Expr, *rd)
		}
		b.stmt(x.Body, tg, rd)
	}
}

func (b *builder) instance(inst *ast.Instance) {
	line := inst.Pos().Line
	name := inst.Name
	if name == "" {
		name = fmt.Sprintf("%s_L%d", inst.Module, line)
	}
	n := b.addNode(&Node{
		ID:     "inst." + name,
		Kind:   KindInstance,
		Name:   name,
		Label:  name,
		Module: inst.Module,
		Line:   line,
	})

	ports, known := b.d.PortInfo(inst.Module)
	if !known {
		ports, known = gatePorts(inst.Module, len(inst.Ports))
		if !known && !b.unknown[inst.Module] {
			b.unknown[inst.Module] = true
			b.diag("unknown_module", SeverityInfo, line, "",
				"module %s is not defined, pin directions are inferred", inst.Module)
		}
	}

	named := false
	seen := make(map[string]bool)
	for _, pa := range inst.Ports {
		pin := Pin{Name: pa.Port, Dir: DirUnknown}
		var info *PortInfo
		if pa.Port == "" {
			if known && pa.Index < len(ports) {
				info = &ports[pa.Index]
				pin.Name = info.Name
			} else if known {
				b.diag("too_many_connections", SeverityWarning, line, "",
					"instance %s: connection #%d exceeds the %d ports of %s", name, pa.Index+1, len(ports), inst.Module)
			}
			if pin.Name == "" {
				pin.Name = fmt.Sprintf("#%d", pa.Index)
			}
		} else {
			named = true
			if known {
				for i := range ports {
					if ports[i].Name == pa.Port {
						info = &ports[i]
						break
					}
				}
				if info == nil {
					b.diag("unknown_port", SeverityWarning, line, "",
						"instance %s: module %s has no port %s", name, inst.Module, pa.Port)
				}
			}
		}
		if info != nil {
			pin.Dir, pin.Width = info.Dir, info.Width
		}
		if pa.Expr != nil {
			pin.Expr = ast.ExprString(pa.Expr)
		}
		seen[pin.Name] = true
		n.Pins = append(n.Pins, pin)
		if pa.Expr != nil {
			b.connect(n, len(n.Pins)-1, pa.Expr, line)
		}
	}
	if named && known {
		// ports left out of a named connection list are open
		for _, p := range ports {
			if !seen[p.Name] {
				n.Pins = append(n.Pins, Pin{Name: p.Name, Dir: p.Dir, Width: p.Width})
			}
		}
	}
}

func (b *builder) connect(n *Node, idx int, e ast.Expr, line int) {
	pin := n.Pins[idx]
	var tg, rd []ref
	switch pin.Dir {
	case DirIn:
		rd = b.reads(e, nil)
	default:
		if isLValue(e) {
			tg, rd = b.targets(e, nil, nil)
		} else {
			rd = b.reads(e, nil)
			if pin.Dir == DirOut {
				b.diag("output_expression", SeverityWarning, line, "",
					"instance %s: output %s drives expression %s", n.Name, pin.Name, ast.ExprString(e))
			}
		}
	}

	var note string
	if cw := b.width(e); pin.Width > 0 && cw > 0 && pin.Width != cw {
		note = fmt.Sprintf("%d vs %d bits", pin.Width, cw)
		signal := ""
		if len(tg) > 0 {
			signal = tg[0].name
		} else if len(rd) > 0 {
			signal = rd[0].name
		}
		b.diag("width_mismatch", SeverityWarning, line, signal,
			"instance %s: %d-bit port %s connected to %d-bit %s", n.Name, pin.Width, pin.Name, cw, ast.ExprString(e))
	}
	ep := Endpoint{Node: n.ID, Pin: pin.Name, Mismatch: note}

	switch pin.Dir {
	case DirOut:
		for _, r := range tg {
			b.drive(r, ep)
		}
	case DirInout:
		bi := ep
		bi.Bidir = true
		for _, r := range tg {
			b.drive(r, bi)
			b.load(r, bi)
		}
	case DirUnknown:
		for _, r := range tg {
			p := ep
			fill(&p, r)
			b.pending = append(b.pending, pending{sig: r.name, ep: p})
		}
	}
	for _, r := range rd {
		b.load(r, ep)
	}
	if len(tg) == 0 && len(rd) == 0 && pin.Dir != DirOut {
		b.constant(e, n.ID, pin.Name, line)
	}
}

func isLValue(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Identifier, *ast.Index, *ast.PartSelect:
		return true
	case *ast.Concat:
		for _, it := range x.Items {
			if !isLValue(it) {
				return false
			}
		}
		return true
	}
	return false
}

func (b *builder) constant(e ast.Expr, to, toPin string, line int) {
	if !b.opts.ShowConstants || e == nil || !IsConstant(e, b.params) {
		return
	}
	text := ast.ExprString(e)
	c := b.addNode(&Node{
		ID:    fmt.Sprintf("const.L%d", line),
		Kind:  KindConstant,
		Name:  text,
		Label: text,
		Line:  line,
	})
	b.direct = append(b.direct, &Edge{From: c.ID, To: to, ToPin: toPin, Label: text, Width: b.width(e)})
}

func fill(ep *Endpoint, r ref) {
	ep.Slice = r.slice
	ep.Text = r.text
	ep.Width = r.width
	ep.Line = r.line
}

func (b *builder) drive(r ref, ep Endpoint) {
	fill(&ep, r)
	s := b.sigs[r.name]
	s.Drivers = append(s.Drivers, ep)
}

func (b *builder) load(r ref, ep Endpoint) {
	fill(&ep, r)
	s := b.sigs[r.name]
	s.Loads = append(s.Loads, ep)
}

func dedupe(refs []ref) []ref {
	seen := make(map[string]bool, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		k := r.name + r.slice.String() + "|" + r.text
		if !r.slice.Known {
			k = r.name + "[?]"
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// isSignal reports whether name can refer to a signal of this module.
func (b *builder) isSignal(name string) bool {
	switch {
	case name == "", b.params[name], b.loop[name]:
		return false
	case isMacro(name), strings.HasPrefix(name, "$"), strings.Contains(name, "."):
		return false
	}
	return true
}

// signal returns the named signal, creating an implicit net for an
// undeclared name.
func (b *builder) signal(name string, line int) *Signal {
	if s, ok := b.sigs[name]; ok {
		return s
	}
	s := b.addSignal(name, "wire", Slice{Known: true}, line)
	s.Implicit = true
	b.diag("implicit_net", SeverityWarning, line, name,
		"%s is not declared, assumed to be a 1-bit wire", name)
	return s
}

// reads appends every signal reference in e.
func (b *builder) reads(e ast.Expr, out []ref) []ref {
	switch x := e.(type) {
	case nil:
		return out
	case *ast.Identifier, *ast.Index, *ast.PartSelect:
		r, idx, base, ok := b.ref(e)
		if ok {
			out = append(out, r)
		} else if base != nil && base != e {
			if _, isIdent := base.(*ast.Identifier); !isIdent {
				out = b.reads(base, out)
			}
		}
		for _, ie := range idx {
			out = b.reads(ie, out)
		}
		return out
	case *ast.Concat:
		for _, it := range x.Items {
			out = b.reads(it, out)
		}
	case *ast.Repeat:
		out = b.reads(x.Count, out)
		for _, it := range x.Items {
			out = b.reads(it, out)
		}
	case *ast.Unary:
		out = b.reads(x.X, out)
	case *ast.Binary:
		out = b.reads(x.X, out)
		out = b.reads(x.Y, out)
	case *ast.Ternary:
		out = b.reads(x.Cond, out)
		out = b.reads(x.Then, out)
		out = b.reads(x.Else, out)
	case *ast.Call:
		for _, a := range x.Args {
			out = b.reads(a, out)
		}
	}
	return out
}

// targets appends the signals assigned by lvalue e to tg, and the signals
// read by its index expressions to rd.
func (b *builder) targets(e ast.Expr, tg, rd []ref) ([]ref, []ref) {
	switch x := e.(type) {
	case *ast.Concat:
		for _, it := range x.Items {
			tg, rd = b.targets(it, tg, rd)
		}
	case *ast.Identifier, *ast.Index, *ast.PartSelect:
		r, idx, _, ok := b.ref(e)
		if ok {
			tg = append(tg, r)
		}
		for _, ie := range idx {
			rd = b.reads(ie, rd)
		}
	}
	return tg, rd
}

// ref resolves a possibly selected identifier. idx holds the select
// expressions, base the innermost selected expression.
func (b *builder) ref(e ast.Expr) (r ref, idx []ast.Expr, base ast.Expr, ok bool) {
	var sels []ast.Expr
	cur := e
walk:
	for {
		switch x := cur.(type) {
		case *ast.Index:
			sels = append(sels, x)
			idx = append(idx, x.Index)
			cur = x.X
		case *ast.PartSelect:
			sels = append(sels, x)
			idx = append(idx, x.Left, x.Right)
			cur = x.X
		default:
			break walk
		}
	}
	id, isIdent := cur.(*ast.Identifier)
	if !isIdent || !b.isSignal(id.Name) {
		return ref{}, idx, cur, false
	}
	s := b.signal(id.Name, id.Pos().Line)
	r = ref{name: id.Name, text: ast.ExprString(e), line: e.Pos().Line, slice: s.Range, width: s.Width}
	for i := len(sels) - 1; i >= 0; i-- {
		if s.Array && i == len(sels)-1 {
			// word select of a memory
			continue
		}
		r.slice, r.width = b.selectSlice(sels[i])
	}
	return r, idx, cur, true
}

// selectSlice evaluates a bit or part select to absolute bit positions.
func (b *builder) selectSlice(sel ast.Expr) (Slice, int) {
	switch x := sel.(type) {
	case *ast.Index:
		if v, ok := Eval(x.Index, b.env); ok {
			return BitRange(int(v), int(v)), 1
		}
		return Slice{}, 1
	case *ast.PartSelect:
		switch x.Op {
		case ":":
			l, ok1 := Eval(x.Left, b.env)
			r, ok2 := Eval(x.Right, b.env)
			if ok1 && ok2 {
				s := BitRange(int(l), int(r))
				return s, s.Width()
			}
		case "+:", "-:":
			w, okw := Eval(x.Right, b.env)
			if !okw || w <= 0 {
				return Slice{}, 0
			}
			if base, ok := Eval(x.Left, b.env); ok {
				if x.Op == "+:" {
					return BitRange(int(base+w-1), int(base)), int(w)
				}
				return BitRange(int(base), int(base-w+1)), int(w)
			}
			return Slice{}, int(w)
		}
	}
	return Slice{}, 0
}

// width infers the bit width of e, 0 when unknown or unsized.
func (b *builder) width(e ast.Expr) int {
	switch x := e.(type) {
	case *ast.Identifier:
		if s, ok := b.sigs[x.Name]; ok && !b.params[x.Name] {
			return s.Width
		}
		return 0
	case *ast.Number:
		return x.Width
	case *ast.String:
		return 8 * len(x.Value)
	case *ast.Index:
		if id, ok := x.X.(*ast.Identifier); ok {
			if s := b.sigs[id.Name]; s != nil && s.Array {
				return s.Width
			}
		}
		return 1
	case *ast.PartSelect:
		_, w := b.selectSlice(x)
		return w
	case *ast.Concat:
		sum := 0
		for _, it := range x.Items {
			w := b.width(it)
			if w == 0 {
				return 0
			}
			sum += w
		}
		return sum
	case *ast.Repeat:
		n, ok := Eval(x.Count, b.env)
		if !ok {
			return 0
		}
		sum := 0
		for _, it := range x.Items {
			w := b.width(it)
			if w == 0 {
				return 0
			}
			sum += w
		}
		return int(n) * sum
	case *ast.Unary:
		switch x.Op {
		case "+", "-", "~":
			return b.width(x.X)
		}
		return 1
	case *ast.Binary:
		switch x.Op {
		case "==", "!=", "===", "!==", "<", "<=", ">", ">=", "&&", "||":
			return 1
		case "<<", ">>", "<<<", ">>>", "**":
			return b.width(x.X)
		}
		return max(b.width(x.X), b.width(x.Y))
	case *ast.Ternary:
		return max(b.width(x.Then), b.width(x.Else))
	case *ast.Call:
		if (x.Name == "$signed" || x.Name == "$unsigned") && len(x.Args) == 1 {
			return b.width(x.Args[0])
		}
	}
	return 0
}

// gatePorts returns the pin list of a built-in gate with n connections.
func gatePorts(module string, n int) ([]PortInfo, bool) {
	var ports []PortInfo
	switch module {
	case "buf", "not":
		for i := 0; i < n-1; i++ {
			ports = append(ports, PortInfo{Name: fmt.Sprintf("out%d", i), Dir: DirOut, Width: 1})
		}
		ports = append(ports, PortInfo{Name: "in", Dir: DirIn, Width: 1})
	case "bufif0", "bufif1", "notif0", "notif1":
		ports = []PortInfo{
			{Name: "out", Dir: DirOut, Width: 1},
			{Name: "in", Dir: DirIn, Width: 1},
			{Name: "ctrl", Dir: DirIn, Width: 1},
		}
	case "pullup", "pulldown":
		for i := 0; i < n; i++ {
			ports = append(ports, PortInfo{Name: fmt.Sprintf("out%d", i), Dir: DirOut, Width: 1})
		}
	case "and", "nand", "or", "nor", "xor", "xnor":
		ports = append(ports, PortInfo{Name: "out", Dir: DirOut, Width: 1})
		for i := 1; i < n; i++ {
			ports = append(ports, PortInfo{Name: fmt.Sprintf("in%d", i), Dir: DirIn, Width: 1})
		}
	default:
		return nil, false
	}
	return ports, true
}
