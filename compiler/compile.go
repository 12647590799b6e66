package compiler

import (
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Compiler: front-end pipeline (lex → parse → attribute)
// ---------------------------------------------------------------------------

// Source file extension for YuvaKriti programs.
const ExtYK = "yk"

var log = commonlog.GetLogger("compiler")

// Compiler drives the front-end phases over a single source buffer and
// collects their diagnostics. Bytecode emission is a separate concern; see
// the bytecode package.
type Compiler struct {
	Features    Features
	Diagnostics *CollectingHandler
}

// NewCompiler creates a compiler with default features.
func NewCompiler() *Compiler {
	return &Compiler{
		Features:    DefaultFeatures(),
		Diagnostics: NewCollectingHandler(),
	}
}

// Parse tokenizes and parses the source text. The returned flag is true if
// any syntax or lexical error was reported.
func (c *Compiler) Parse(source string) (*Program, bool) {
	log.Debug("parsing")
	lexer := NewLexer(source, c.Diagnostics)
	parser := NewParser(lexer, c.Diagnostics)
	program := parser.Parse()
	return program, parser.HasErrors() || c.Diagnostics.HasErrors()
}

// Attribute runs the attribution passes on a parsed program: name
// resolution, then constant folding when the const-folding feature is
// enabled. Returns true if attribution reported any error.
func (c *Compiler) Attribute(program *Program) bool {
	log.Debug("resolving names")
	resolver := NewResolver(c.Diagnostics)
	resolver.Resolve(program)
	if resolver.HasErrors() {
		return true
	}

	if c.Features.ConstFolding {
		log.Debug("folding constants")
		NewFolder().Fold(program)
	}
	return false
}

// Compile parses and attributes the source text. The program is only
// suitable for emission when the returned flag is false.
func (c *Compiler) Compile(source string) (*Program, bool) {
	program, hasErrors := c.Parse(source)
	if hasErrors {
		return program, true
	}
	return program, c.Attribute(program)
}
