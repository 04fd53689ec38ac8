package netlist

import (
	"math/bits"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// Env maps parameter names to their values.
type Env map[string]int64

// Eval evaluates a constant expression. ok is false when the expression
// references anything but parameters and literals, or cannot be computed.
func Eval(e ast.Expr, env Env) (v int64, ok bool) {
	switch x := e.(type) {
	case *ast.Number:
		if !x.Known {
			return 0, false
		}
		return int64(x.Value), true
	case *ast.Identifier:
		v, ok := env[x.Name]
		return v, ok
	case *ast.Unary:
		a, ok := Eval(x.X, env)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case "+":
			return a, true
		case "-":
			return -a, true
		case "~":
			return ^a, true
		case "!":
			return boolInt(a == 0), true
		}
		return 0, false
	case *ast.Binary:
		a, ok := Eval(x.X, env)
		if !ok {
			return 0, false
		}
		b, ok := Eval(x.Y, env)
		if !ok {
			return 0, false
		}
		return binaryOp(x.Op, a, b)
	case *ast.Ternary:
		c, ok := Eval(x.Cond, env)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return Eval(x.Then, env)
		}
		return Eval(x.Else, env)
	case *ast.Call:
		if len(x.Args) != 1 {
			return 0, false
		}
		a, ok := Eval(x.Args[0], env)
		if !ok {
			return 0, false
		}
		switch x.Name {
		case "$clog2":
			return clog2(a), true
		case "$signed", "$unsigned":
			return a, true
		}
	}
	return 0, false
}

func binaryOp(op string, a, b int64) (int64, bool) {
	switch op {
	case "+":
		return a + b, true
	case "-":
		return a - b, true
	case "*":
		return a * b, true
	case "/":
		if b == 0 {
			return 0, false
		}
		return a / b, true
	case "%":
		if b == 0 {
			return 0, false
		}
		return a % b, true
	case "**":
		if b < 0 || b > 62 {
			return 0, false
		}
		r := int64(1)
		for i := int64(0); i < b; i++ {
			r *= a
		}
		return r, true
	case "<<", "<<<":
		if b < 0 || b > 63 {
			return 0, false
		}
		return a << uint(b), true
	case ">>", ">>>":
		if b < 0 || b > 63 {
			return 0, false
		}
		return a >> uint(b), true
	case "&":
		return a & b, true
	case "|":
		return a | b, true
	case "^":
		return a ^ b, true
	case "==", "===":
		return boolInt(a == b), true
	case "!=", "!==":
		return boolInt(a != b), true
	case "<":
		return boolInt(a < b), true
	case "<=":
		return boolInt(a <= b), true
	case ">":
		return boolInt(a > b), true
	case ">=":
		return boolInt(a >= b), true
	case "&&":
		return boolInt(a != 0 && b != 0), true
	case "||":
		return boolInt(a != 0 || b != 0), true
	}
	return 0, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func clog2(a int64) int64 {
	if a <= 1 {
		return 0
	}
	return int64(bits.Len64(uint64(a - 1)))
}

// EvalRange evaluates a packed range to a slice. A nil range is a single bit.
func EvalRange(r *ast.Range, env Env) Slice {
	if r == nil {
		return Slice{Known: true}
	}
	msb, ok1 := Eval(r.MSB, env)
	lsb, ok2 := Eval(r.LSB, env)
	if !ok1 || !ok2 {
		return Slice{}
	}
	return BitRange(int(msb), int(lsb))
}

// IsConstant reports whether e references no signals: only literals,
// parameters and calls over them.
func IsConstant(e ast.Expr, params map[string]bool) bool {
	constant := true
	ast.Inspect(e, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok && !params[id.Name] && !isMacro(id.Name) {
			constant = false
		}
		return constant
	})
	return constant
}

func isMacro(name string) bool {
	return len(name) > 0 && name[0] == '`'
}
