package ast

import (
	"fmt"
	"io"
	"strings"
)

// Inspect traverses the tree rooted at n depth first. If f returns false the
// children of that node are not visited.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range n.Children() {
		Inspect(c, f)
	}
}

// Name returns the identifying attribute of a node for display: a name, a
// variable name or a literal value. ok is false if the node has none.
func Name(n Node) (label string, attr string, ok bool) {
	switch v := n.(type) {
	case *ModuleDef:
		return v.Name, "name", true
	case *Parameter:
		return v.Name, "name", true
	case *Port:
		return v.Name, "name", true
	case *Decl:
		return v.Name, "name", true
	case *Instance:
		return v.Name, "name", true
	case *InstanceList:
		return v.Module, "module", true
	case *PortArg:
		if v.Port == "" {
			return fmt.Sprintf("#%d", v.Index), "portname", true
		}
		return v.Port, "portname", true
	case *ParamArg:
		if v.Name == "" {
			return fmt.Sprintf("#%d", v.Index), "paramname", true
		}
		return v.Name, "paramname", true
	case *Identifier:
		return v.Name, "name", true
	case *Number:
		return v.Text, "value", true
	case *String:
		return v.Value, "value", true
	case *Unary:
		return v.Op, "op", true
	case *Binary:
		return v.Op, "op", true
	case *Sens:
		if v.Edge != "" {
			return v.Edge, "type", true
		}
	case *Call:
		return v.Name, "name", true
	case *Block:
		if v.Name != "" {
			return v.Name, "scope", true
		}
	case *Skipped:
		return v.What, "what", true
	}
	return "", "", false
}

// Dump writes an indented rendering of the tree to w, one node per line.
// Instance lists additionally list their port connections.
func Dump(w io.Writer, n Node) error {
	var err error
	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		if err != nil {
			return
		}
		indent := strings.Repeat("  ", depth)
		line := indent + n.Kind()
		if label, attr, ok := Name(n); ok {
			line += fmt.Sprintf(" (%s: %s)", attr, label)
		}
		if _, err = fmt.Fprintln(w, line); err != nil {
			return
		}
		if il, ok := n.(*InstanceList); ok {
			for _, inst := range il.Instances {
				for _, p := range inst.Ports {
					port := p.Port
					if port == "" {
						port = fmt.Sprintf("#%d", p.Index)
					}
					wire := "<unconnected>"
					if p.Expr != nil {
						wire = ExprString(p.Expr)
					}
					if _, err = fmt.Fprintf(w, "%s  Internal port: %s, External wire: %s\n", indent, port, wire); err != nil {
						return
					}
				}
			}
		}
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return err
}

// ExprString renders an expression back to Verilog-like text.
func ExprString(e Expr) string {
	if e == nil {
		return ""
	}
	switch v := e.(type) {
	case *Identifier:
		return v.Name
	case *Number:
		return v.Text
	case *String:
		return fmt.Sprintf("%q", v.Value)
	case *Index:
		return ExprString(v.X) + "[" + ExprString(v.Index) + "]"
	case *PartSelect:
		return ExprString(v.X) + "[" + ExprString(v.Left) + v.Op + ExprString(v.Right) + "]"
	case *Concat:
		return "{" + joinExprs(v.Items) + "}"
	case *Repeat:
		return "{" + ExprString(v.Count) + "{" + joinExprs(v.Items) + "}}"
	case *Unary:
		return v.Op + wrap(v.X)
	case *Binary:
		return wrap(v.X) + " " + v.Op + " " + wrap(v.Y)
	case *Ternary:
		return wrap(v.Cond) + " ? " + wrap(v.Then) + " : " + wrap(v.Else)
	case *Call:
		return v.Name + "(" + joinExprs(v.Args) + ")"
	}
	return e.Kind()
}

func joinExprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = ExprString(e)
	}
	return strings.Join(parts, ", ")
}

func wrap(e Expr) string {
	switch e.(type) {
	case *Binary, *Ternary:
		return "(" + ExprString(e) + ")"
	}
	return ExprString(e)
}

// SensString renders a sensitivity list the way it is written after "@".
func SensString(sens []*Sens, star bool) string {
	if star {
		return "*"
	}
	parts := make([]string, 0, len(sens))
	for _, s := range sens {
		if s.Edge != "" {
			parts = append(parts, s.Edge+" "+ExprString(s.Expr))
			continue
		}
		parts = append(parts, ExprString(s.Expr))
	}
	return strings.Join(parts, " or ")
}

// Merge combines parsed files into a single tree. Module order follows the
// argument order.
func Merge(srcs ...*Source) *Source {
	out := &Source{}
	for _, s := range srcs {
		if s == nil {
			continue
		}
		if out.File == "" {
			out.File = s.File
			out.Span = s.Span
		}
		out.Modules = append(out.Modules, s.Modules...)
		out.Skipped = append(out.Skipped, s.Skipped...)
	}
	return out
}
