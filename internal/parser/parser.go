package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// SyntaxError reports malformed configuration text.
type SyntaxError struct {
	File string
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s", tree.Location{File: e.File, Line: e.Line}, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return sharedErrors.ErrSyntax
}

// Parse reads an nginx configuration from r and returns its tree. name is
// recorded as the file of every node location. Directives are not checked
// against any schema, and include is kept as a plain directive.
func Parse(name string, r io.Reader) (*tree.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	p := &parser{
		file:    name,
		lex:     newLexer(string(data)),
		builder: tree.NewBuilder(name),
	}
	return p.parse()
}

// ParseString parses configuration text held in memory.
func ParseString(name, text string) (*tree.Node, error) {
	return Parse(name, strings.NewReader(text))
}

// ParseFile parses the configuration file at path.
func ParseFile(path string) (*tree.Node, error) {
	if strings.TrimSpace(path) == "" {
		return nil, sharedErrors.ErrEmptyPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return Parse(path, f)
}

type parser struct {
	file    string
	lex     *lexer
	builder *tree.Builder
	// open holds the line of every block still waiting for its "}".
	open []int
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return &SyntaxError{File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parse() (*tree.Node, error) {
	for {
		tok := p.lex.next()
		switch tok.typ {
		case tokenEOF:
			if n := len(p.open); n > 0 {
				return nil, p.errorf(p.open[n-1], "unclosed block")
			}
			return p.builder.Build()
		case tokenIllegal:
			return nil, p.errorf(tok.line, "%s", tok.literal)
		case tokenRBrace:
			if len(p.open) == 0 {
				return nil, p.errorf(tok.line, `unexpected "}"`)
			}
			if err := p.builder.Close(); err != nil {
				return nil, p.errorf(tok.line, "%v", err)
			}
			p.open = p.open[:len(p.open)-1]
		case tokenSemi, tokenLBrace:
			return nil, p.errorf(tok.line, "unexpected %s", tok.typ)
		case tokenWord:
			if err := p.statement(tok); err != nil {
				return nil, err
			}
		}
	}
}

// statement reads the arguments following a directive name up to the ";"
// or "{" that ends it.
func (p *parser) statement(name token) error {
	loc := tree.Location{File: p.file, Line: name.line}
	var args []string
	for {
		tok := p.lex.next()
		switch tok.typ {
		case tokenWord:
			args = append(args, tok.literal)
		case tokenSemi:
			p.builder.Directive(loc, name.literal, args)
			return nil
		case tokenLBrace:
			p.builder.Open(loc, name.literal, args)
			p.open = append(p.open, name.line)
			return nil
		case tokenIllegal:
			return p.errorf(tok.line, "%s", tok.literal)
		default:
			return p.errorf(name.line, "directive %q is not terminated by \";\"", name.literal)
		}
	}
}
