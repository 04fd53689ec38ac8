// Command vlog-ast prints how the built-in parser sees a Verilog file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/parser"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/preprocess"
)

func main() {
	tokens := flag.Bool("tokens", false, "print the token stream instead of the tree")
	var macros multiFlag
	flag.Var(&macros, "D", "macro to define, NAME or NAME=VALUE (repeatable)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: vlog-ast [-tokens] [-D NAME[=VALUE]]... <file.v>")
		os.Exit(1)
	}
	if err := run(context.Background(), os.Stdout, flag.Arg(0), macros, *tokens); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type multiFlag []string

func (m *multiFlag) String() string     { return fmt.Sprint([]string(*m)) }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func run(ctx context.Context, w io.Writer, path string, macros []string, tokens bool) error {
	res, err := preprocess.Builtin{}.Preprocess(ctx, preprocess.Request{Path: path, Macros: macros})
	if err != nil {
		return err
	}

	if tokens {
		toks, err := parser.Lex(path, res.Source)
		if err != nil {
			return err
		}
		for _, t := range toks {
			fmt.Fprintln(w, t.String())
		}
		return nil
	}

	src, err := parser.Builtin{}.ParseSource(ctx, path, res.Source)
	if err != nil {
		return err
	}
	return ast.Dump(w, src)
}
