// Package ast defines the node kinds produced by the Verilog parser.
//
// The grammar is deliberately small: module definitions, parameters, port and
// net declarations, continuous assignments, procedural blocks and module
// instances, plus the expression forms that appear inside them. Everything the
// signal-flow builder needs is reachable through Children().
package ast

import "fmt"

// Pos is a source location.
type Pos struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line"`
	Col  int    `json:"col,omitempty"`
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Node is implemented by every AST node.
type Node interface {
	// Kind is the node kind name, e.g. "ModuleDef" or "Identifier".
	Kind() string
	Pos() Pos
	Children() []Node
}

// Expr is a node that can appear in expression position.
type Expr interface {
	Node
	expr()
}

// Stmt is a node that can appear inside a procedural block.
type Stmt interface {
	Node
	stmt()
}

// Span carries the location of a node. It is embedded in every node type.
type Span struct {
	Loc Pos
}

// At returns a Span for p.
func At(p Pos) Span { return Span{Loc: p} }

// Pos returns the start position of the node.
func (s Span) Pos() Pos { return s.Loc }

// Source is the root of a parsed file (or of several merged files).
type Source struct {
	Span
	File    string
	Modules []*ModuleDef
	Skipped []*Skipped
}

// ModuleDef is a module ... endmodule definition.
type ModuleDef struct {
	Span
	Name    string
	Params  []*Parameter
	Ports   []*Port
	Items   []Node
	EndLine int
}

// Parameter is a parameter or localparam declaration.
type Parameter struct {
	Span
	Name  string
	Local bool
	Range *Range
	Value Expr
}

// Port is an entry of the module header port list, in declaration order.
type Port struct {
	Span
	Name string
}

// Range is a packed [MSB:LSB] range.
type Range struct {
	Span
	MSB Expr
	LSB Expr
}

// DeclKind is the declaration keyword of a Decl.
type DeclKind string

const (
	DeclInput   DeclKind = "input"
	DeclOutput  DeclKind = "output"
	DeclInout   DeclKind = "inout"
	DeclWire    DeclKind = "wire"
	DeclReg     DeclKind = "reg"
	DeclLogic   DeclKind = "logic"
	DeclInteger DeclKind = "integer"
	DeclTri     DeclKind = "tri"
	DeclSupply0 DeclKind = "supply0"
	DeclSupply1 DeclKind = "supply1"
	DeclGenvar  DeclKind = "genvar"
)

// IsPort reports whether the declaration is a port direction.
func (k DeclKind) IsPort() bool {
	return k == DeclInput || k == DeclOutput || k == DeclInout
}

// Decl declares a single name. A statement such as "input [3:0] a, b;" yields
// one Decl per name sharing the same range.
type Decl struct {
	Span
	Keyword DeclKind
	NetType string // "wire", "reg", "logic" when given next to a direction
	Signed  bool
	Range   *Range
	Array   *Range // unpacked dimension, e.g. memories
	Name    string
	Init    Expr
}

// InstanceList is one instantiation statement, possibly naming several instances.
type InstanceList struct {
	Span
	Module    string
	Params    []*ParamArg
	Instances []*Instance
}

// Instance is a single module instance.
type Instance struct {
	Span
	Name   string
	Module string
	Params []*ParamArg
	Array  *Range
	Ports  []*PortArg
}

// PortArg connects an instance port. Port is empty for positional connections,
// in which case Index holds the position. Expr is nil for ".p()".
type PortArg struct {
	Span
	Port  string
	Index int
	Expr  Expr
}

// ParamArg is a parameter override in #(...).
type ParamArg struct {
	Span
	Name  string
	Index int
	Value Expr
}

// Assign is a continuous assignment.
type Assign struct {
	Span
	LHS      Expr
	RHS      Expr
	Implicit bool // from a net declaration initializer
}

// Always is an always (or always_ff/always_comb/always_latch) block.
type Always struct {
	Span
	Keyword string
	Sens    []*Sens
	Star    bool
	Body    Stmt
	EndLine int
}

// Sens is one entry of a sensitivity list.
type Sens struct {
	Span
	Edge string // "posedge", "negedge" or ""
	Expr Expr
}

// Initial is an initial block.
type Initial struct {
	Span
	Body Stmt
}

// Skipped records a region the parser recognised but does not model
// (generate, function, task, specify).
type Skipped struct {
	Span
	What    string
	EndLine int
}

// Block is a begin ... end sequence.
type Block struct {
	Span
	Name  string
	Stmts []Stmt
}

// If is an if/else statement.
type If struct {
	Span
	Cond Expr
	Then Stmt
	Else Stmt
}

// Case is a case, casez or casex statement.
type Case struct {
	Span
	Keyword string
	Subject Expr
	Items   []*CaseItem
}

// CaseItem is one arm of a case. Exprs is empty for the default arm.
type CaseItem struct {
	Span
	Exprs []Expr
	Body  Stmt
}

// ProcAssign is a blocking (=) or nonblocking (<=) procedural assignment.
type ProcAssign struct {
	Span
	Nonblocking bool
	LHS         Expr
	RHS         Expr
}

// For is a for loop.
type For struct {
	Span
	Init *ProcAssign
	Cond Expr
	Step *ProcAssign
	Body Stmt
}

// EventStmt is an event control inside a procedural body: @(...) stmt.
type EventStmt struct {
	Span
	Sens []*Sens
	Star bool
	Body Stmt
}

// Identifier references a name. Hierarchical names keep their dots.
type Identifier struct {
	Span
	Name string
}

// Number is a numeric literal. Width is 0 for unsized literals.
type Number struct {
	Span
	Text  string
	Width int
	Value uint64
	Known bool // Value is meaningful (no x/z digits, no overflow)
}

// String is a string literal.
type String struct {
	Span
	Value string
}

// Index is a bit select x[i].
type Index struct {
	Span
	X     Expr
	Index Expr
}

// PartSelect is x[l:r], x[b+:w] or x[b-:w].
type PartSelect struct {
	Span
	X     Expr
	Op    string
	Left  Expr
	Right Expr
}

// Concat is {a, b, c}.
type Concat struct {
	Span
	Items []Expr
}

// Repeat is a replication {n{a, b}}.
type Repeat struct {
	Span
	Count Expr
	Items []Expr
}

// Unary is a prefix operator, including reductions.
type Unary struct {
	Span
	Op string
	X  Expr
}

// Binary is an infix operator.
type Binary struct {
	Span
	Op string
	X  Expr
	Y  Expr
}

// Ternary is c ? a : b.
type Ternary struct {
	Span
	Cond Expr
	Then Expr
	Else Expr
}

// Call is a function or system function call.
type Call struct {
	Span
	Name string
	Args []Expr
}

func (*Identifier) expr() {}
func (*Number) expr()     {}
func (*String) expr()     {}
func (*Index) expr()      {}
func (*PartSelect) expr() {}
func (*Concat) expr()     {}
func (*Repeat) expr()     {}
func (*Unary) expr()      {}
func (*Binary) expr()     {}
func (*Ternary) expr()    {}
func (*Call) expr()       {}

func (*Block) stmt()      {}
func (*If) stmt()         {}
func (*Case) stmt()       {}
func (*ProcAssign) stmt() {}
func (*For) stmt()        {}
func (*EventStmt) stmt()  {}
