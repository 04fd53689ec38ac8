package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	EOF TokenType = iota
	Ident
	SysIdent  // $clog2, $display
	Directive // unresolved `MACRO usage
	Number
	String
	Op
)

func (t TokenType) String() string {
	switch t {
	case EOF:
		return "end of input"
	case Ident:
		return "identifier"
	case SysIdent:
		return "system identifier"
	case Directive:
		return "macro"
	case Number:
		return "number"
	case String:
		return "string"
	case Op:
		return "operator"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is a lexical item.
type Token struct {
	Type TokenType
	Text string
	Pos  ast.Pos
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case String:
		return fmt.Sprintf("string %q", t.Text)
	}
	return fmt.Sprintf("%q", t.Text)
}

const eof = -1

// operators, longest first so that the first prefix match wins.
var operators = []string{
	"<<<", ">>>", "===", "!==",
	"==", "!=", "<=", ">=", "&&", "||", "<<", ">>", "**",
	"~&", "~|", "~^", "^~", "+:", "-:", "->", "::",
	"+", "-", "*", "/", "%", "<", ">", "!", "~", "&", "|", "^",
	"?", ":", ";", ",", ".", "(", ")", "[", "]", "{", "}", "#", "@", "=", "'",
}

// directives that carry no meaning for structure and are dropped with the
// rest of their line.
var lineDirectives = map[string]bool{
	"timescale": true, "default_nettype": true, "resetall": true,
	"celldefine": true, "endcelldefine": true, "include": true,
	"define": true, "undef": true, "ifdef": true, "ifndef": true,
	"else": true, "elsif": true, "endif": true, "line": true,
	"unconnected_drive": true, "nounconnected_drive": true, "pragma": true,
}

type stateFn func(*lexer) stateFn

type lexer struct {
	file   string
	input  string
	start  int
	pos    int
	width  int
	line   int
	col    int
	sline  int
	scol   int
	tokens []Token
	err    error
}

// Lex splits src into tokens. Comments, attributes and line directives are
// discarded.
func Lex(file, src string) ([]Token, error) {
	l := &lexer{file: file, input: src, line: 1, col: 1}
	for state := lexText; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.tokens, nil
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

// backup steps back one rune. It must be called at most once per next, and
// never across a newline.
func (l *lexer) backup() {
	l.pos -= l.width
	if l.width > 0 {
		l.col--
	}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *lexer) mark() {
	l.start = l.pos
	l.sline = l.line
	l.scol = l.col
}

func (l *lexer) emit(t TokenType) {
	l.emitText(t, l.input[l.start:l.pos])
}

func (l *lexer) emitText(t TokenType, text string) {
	l.tokens = append(l.tokens, Token{
		Type: t,
		Text: text,
		Pos:  ast.Pos{File: l.file, Line: l.sline, Col: l.scol},
	})
}

func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.err = errors.Errorf("%s:%d:%d: %s", l.file, l.sline, l.scol, fmt.Sprintf(format, args...))
	return nil
}

func (l *lexer) skipTo(end string) bool {
	i := strings.Index(l.input[l.pos:], end)
	if i < 0 {
		for l.next() != eof {
		}
		return false
	}
	stop := l.pos + i + len(end)
	for l.pos < stop {
		l.next()
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || isDigit(r) || r == '$'
}

func isDigit(r rune) bool { return '0' <= r && r <= '9' }

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
}

func lexText(l *lexer) stateFn {
	for {
		l.mark()
		r := l.next()
		switch {
		case r == eof:
			l.emitText(EOF, "")
			return nil
		case isSpace(r):
			continue
		case r == '/' && l.peek() == '/':
			l.skipTo("\n")
			continue
		case r == '/' && l.peek() == '*':
			if !l.skipTo("*/") {
				return l.errorf("unterminated block comment")
			}
			continue
		case r == '(' && l.peek() == '*' && !isStarParen(l.input[l.pos+1:]):
			if !l.skipTo("*)") {
				return l.errorf("unterminated attribute")
			}
			continue
		case isIdentStart(r):
			return lexIdent
		case r == '\\':
			return lexEscapedIdent
		case r == '$':
			return lexSysIdent
		case r == '`':
			return lexDirective
		case isDigit(r):
			return lexNumber
		case r == '\'' && isBaseChar(l.peek()):
			return lexBased
		case r == '"':
			return lexString
		default:
			l.backup()
			return lexOperator
		}
	}
}

// isStarParen reports whether rest (the input after "(*") is only blank
// space followed by ")", as in "@(*)".
func isStarParen(rest string) bool {
	return strings.HasPrefix(strings.TrimLeft(rest, " \t\r\n"), ")")
}

func lexIdent(l *lexer) stateFn {
	for isIdentChar(l.peek()) {
		l.next()
	}
	// hierarchical references stay a single token
	for l.peek() == '.' && l.pos+1 < len(l.input) && isIdentStart(rune(l.input[l.pos+1])) {
		l.next()
		for isIdentChar(l.peek()) {
			l.next()
		}
	}
	l.emit(Ident)
	return lexText
}

func lexEscapedIdent(l *lexer) stateFn {
	for {
		r := l.peek()
		if r == eof || isSpace(r) {
			break
		}
		l.next()
	}
	// the escape and terminating space are not part of the name
	l.emitText(Ident, l.input[l.start+1:l.pos])
	return lexText
}

func lexSysIdent(l *lexer) stateFn {
	for isIdentChar(l.peek()) {
		l.next()
	}
	l.emit(SysIdent)
	return lexText
}

func lexDirective(l *lexer) stateFn {
	for isIdentChar(l.peek()) {
		l.next()
	}
	name := l.input[l.start+1 : l.pos]
	if name == "" {
		return l.errorf("stray backtick")
	}
	if lineDirectives[name] {
		for r := l.peek(); r != eof && r != '\n'; r = l.peek() {
			l.next()
		}
		return lexText
	}
	l.emit(Directive)
	return lexText
}

func isBaseChar(r rune) bool {
	switch r {
	case 'b', 'B', 'o', 'O', 'd', 'D', 'h', 'H', 's', 'S':
		return true
	}
	return false
}

func isBasedDigit(r rune) bool {
	switch {
	case isDigit(r), r == '_', r == '?':
		return true
	case 'a' <= r && r <= 'f', 'A' <= r && r <= 'F':
		return true
	case r == 'x', r == 'X', r == 'z', r == 'Z':
		return true
	}
	return false
}

func lexNumber(l *lexer) stateFn {
	for r := l.peek(); isDigit(r) || r == '_'; r = l.peek() {
		l.next()
	}
	// real literal
	if l.peek() == '.' && l.pos+1 < len(l.input) && isDigit(rune(l.input[l.pos+1])) {
		l.next()
		for r := l.peek(); isDigit(r) || r == '_'; r = l.peek() {
			l.next()
		}
		l.emit(Number)
		return lexText
	}
	// size followed by a base: "8'hff", "8 'h ff"
	save, line, col := l.pos, l.line, l.col
	for r := l.peek(); r == ' ' || r == '\t'; r = l.peek() {
		l.next()
	}
	if l.peek() == '\'' && l.pos+1 < len(l.input) && isBaseChar(rune(l.input[l.pos+1])) {
		l.next()
		return lexBased
	}
	l.pos, l.line, l.col = save, line, col
	l.emit(Number)
	return lexText
}

// lexBased scans the base and digits of a based literal; the leading size
// (if any) and the apostrophe have been consumed.
func lexBased(l *lexer) stateFn {
	if r := l.peek(); r == 's' || r == 'S' {
		l.next()
	}
	if !isBaseChar(l.peek()) {
		return l.errorf("malformed based number")
	}
	l.next()
	for r := l.peek(); r == ' ' || r == '\t'; r = l.peek() {
		l.next()
	}
	n := 0
	for isBasedDigit(l.peek()) {
		l.next()
		n++
	}
	if n == 0 {
		return l.errorf("based number without digits")
	}
	text := strings.Join(strings.Fields(l.input[l.start:l.pos]), "")
	l.emitText(Number, text)
	return lexText
}

func lexString(l *lexer) stateFn {
	var b strings.Builder
	for {
		r := l.next()
		switch r {
		case eof, '\n':
			return l.errorf("unterminated string")
		case '\\':
			e := l.next()
			switch e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case eof:
				return l.errorf("unterminated string")
			default:
				b.WriteRune(e)
			}
		case '"':
			l.emitText(String, b.String())
			return lexText
		default:
			b.WriteRune(r)
		}
	}
}

func lexOperator(l *lexer) stateFn {
	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.next()
			}
			l.emit(Op)
			return lexText
		}
	}
	r := l.next()
	return l.errorf("unexpected character %q", r)
}
