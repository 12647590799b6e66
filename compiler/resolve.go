package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Resolver: name resolution and loop-label binding
// ---------------------------------------------------------------------------

// Resolver walks the AST top-down, assigning local-variable slots to
// declarations, binding identifier references to slots, and resolving loop
// labels to numeric loop ids. Slots are assigned within a flat per-function
// frame: the first declared local gets index 0 and shadowed names get fresh
// indices, so a frame's size is the total number of declarations it saw.
type Resolver struct {
	diagnostics DiagnosticHandler
	hasErrors   bool

	scopes     []map[string]int // innermost last; name → slot
	nextSlot   int              // next free slot in the current frame
	funcs      map[string]*FunDecl
	loops      []loopFrame
	nextLoopID int
	inFunction bool
}

type loopFrame struct {
	label string
	id    int
}

// NewResolver creates a resolver reporting to the given handler.
func NewResolver(diagnostics DiagnosticHandler) *Resolver {
	if diagnostics == nil {
		diagnostics = NoOpHandler{}
	}
	return &Resolver{
		diagnostics: diagnostics,
		funcs:       make(map[string]*FunDecl),
	}
}

// HasErrors reports whether resolution found any errors.
func (r *Resolver) HasErrors() bool {
	return r.hasErrors
}

func (r *Resolver) errorAt(span Span, format string, args ...any) {
	r.hasErrors = true
	r.diagnostics.Handle(Diagnostic{
		Range:   span,
		Message: fmt.Sprintf(format, args...),
		Kind:    SeverityError,
	})
}

// Resolve analyzes a complete program.
func (r *Resolver) Resolve(program *Program) {
	r.scopes = []map[string]int{make(map[string]int)}
	r.nextSlot = 0
	r.nextLoopID = 0

	for _, stmt := range program.Stmts {
		// Function declarations live at the top level only; anywhere else
		// they are rejected by the statement walk below.
		if fun, ok := stmt.(*FunDecl); ok {
			r.funDecl(fun)
			continue
		}
		r.stmt(stmt)
	}
	program.NumLocals = r.nextSlot
}

// beginScope pushes a new lexical scope.
func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, make(map[string]int))
}

// endScope pops the innermost scope. Slots are not reused; the frame stays
// flat so that every declaration keeps a distinct index.
func (r *Resolver) endScope() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// declare binds a name to the next free slot in the current scope.
func (r *Resolver) declare(name string, span Span) int {
	inner := r.scopes[len(r.scopes)-1]
	if _, exists := inner[name]; exists {
		r.errorAt(span, "Variable '%s' is already declared", name)
		return -1
	}
	slot := r.nextSlot
	r.nextSlot++
	inner[name] = slot
	return slot
}

// lookup finds a name in the enclosing scopes, innermost first.
func (r *Resolver) lookup(name string) (int, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if slot, ok := r.scopes[i][name]; ok {
			return slot, true
		}
	}
	return -1, false
}

func (r *Resolver) stmt(stmt Stmt) {
	switch st := stmt.(type) {
	case *VarDecl:
		// The initializer is resolved before the name is declared, so
		// `var a = a;` fails when no outer `a` exists.
		if st.Init != nil {
			r.expr(st.Init)
		}
		st.Slot = r.declare(st.Name, st.SpanVal)

	case *FunDecl:
		r.errorAt(st.SpanVal, "nested functions are not supported")

	case *ExprStmt:
		r.expr(st.Expr)

	case *PrintStmt:
		r.expr(st.Expr)

	case *ReturnStmt:
		if !r.inFunction {
			r.errorAt(st.SpanVal, "'return' outside of a function")
		}
		if st.Value != nil {
			r.expr(st.Value)
		}

	case *BlockStmt:
		r.beginScope()
		for _, s := range st.Stmts {
			r.stmt(s)
		}
		r.endScope()

	case *IfStmt:
		r.expr(st.Cond)
		r.stmt(st.Then)
		if st.Else != nil {
			r.stmt(st.Else)
		}

	case *WhileStmt:
		r.expr(st.Cond)
		st.LoopID = r.pushLoop(st.Label, st.SpanVal)
		r.stmt(st.Body)
		r.popLoop()

	case *ForStmt:
		// The initializer's variable is scoped to the loop.
		r.beginScope()
		if st.Init != nil {
			r.stmt(st.Init)
		}
		if st.Cond != nil {
			r.expr(st.Cond)
		}
		if st.Step != nil {
			r.expr(st.Step)
		}
		st.LoopID = r.pushLoop(st.Label, st.SpanVal)
		r.stmt(st.Body)
		r.popLoop()
		r.endScope()

	case *BreakStmt:
		st.LoopID = r.resolveLoopRef(st.Label, st.SpanVal, "break")

	case *ContinueStmt:
		st.LoopID = r.resolveLoopRef(st.Label, st.SpanVal, "continue")
	}
}

func (r *Resolver) funDecl(fun *FunDecl) {
	// The function name lives in the program root scope.
	if _, exists := r.funcs[fun.Name]; exists {
		r.errorAt(fun.SpanVal, "Function '%s' is already declared", fun.Name)
	} else {
		r.funcs[fun.Name] = fun
	}

	// Function bodies get their own flat frame; parameters take the first
	// slots.
	outerScopes, outerSlot, outerLoops := r.scopes, r.nextSlot, r.loops
	r.scopes = []map[string]int{make(map[string]int)}
	r.nextSlot = 0
	r.loops = nil
	r.inFunction = true

	for _, param := range fun.Params {
		r.declare(param.Name, param.SpanVal)
	}
	for _, s := range fun.Body.Stmts {
		r.stmt(s)
	}
	fun.NumLocals = r.nextSlot

	r.inFunction = false
	r.scopes, r.nextSlot, r.loops = outerScopes, outerSlot, outerLoops
}

func (r *Resolver) expr(expr Expr) {
	switch e := expr.(type) {
	case *Literal:
		// nothing to resolve

	case *Identifier:
		slot, ok := r.lookup(e.Name)
		if !ok {
			r.errorAt(e.SpanVal, "Variable '%s' is not declared", e.Name)
			return
		}
		e.Slot = slot

	case *Assign:
		r.expr(e.Value)
		slot, ok := r.lookup(e.Name)
		if !ok {
			r.errorAt(e.SpanVal, "Variable '%s' is not declared", e.Name)
			return
		}
		e.Slot = slot

	case *Unary:
		r.expr(e.Operand)

	case *Binary:
		r.expr(e.Left)
		r.expr(e.Right)

	case *Grouping:
		r.expr(e.Inner)
	}
}

// pushLoop enters a loop, assigning it a loop id. A label that is already
// visible on an enclosing loop is an error.
func (r *Resolver) pushLoop(label string, span Span) int {
	if label != "" {
		for _, frame := range r.loops {
			if frame.label == label {
				r.errorAt(span, "Label '%s' is already declared", label)
				break
			}
		}
	}
	id := r.nextLoopID
	r.nextLoopID++
	r.loops = append(r.loops, loopFrame{label: label, id: id})
	return id
}

func (r *Resolver) popLoop() {
	r.loops = r.loops[:len(r.loops)-1]
}

// resolveLoopRef resolves a break/continue target. An empty label targets
// the innermost loop.
func (r *Resolver) resolveLoopRef(label string, span Span, what string) int {
	if len(r.loops) == 0 {
		r.errorAt(span, "'%s' outside of a loop", what)
		return -1
	}
	if label == "" {
		return r.loops[len(r.loops)-1].id
	}
	for i := len(r.loops) - 1; i >= 0; i-- {
		if r.loops[i].label == label {
			return r.loops[i].id
		}
	}
	r.errorAt(span, "Label '%s' is not declared", label)
	return -1
}
