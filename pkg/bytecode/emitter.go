package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yklang/yuvakriti/compiler"
)

// ---------------------------------------------------------------------------
// Emitter: attributed AST → YKB file
// ---------------------------------------------------------------------------

// Emitter translates an attributed program into a bytecode file. The
// top-level statements become the file's first Code attribute; each function
// body becomes a further Code attribute in declaration order.
//
// While emitting, the emitter tracks the operand-stack depth instruction by
// instruction. Every statement must leave the depth where it found it;
// violating that is an internal error, not a user diagnostic. The high-water
// mark becomes the region's max_stack.
type Emitter struct {
	// CollectDebug records a source map per emitted region, retrievable
	// from Debug after Emit.
	CollectDebug bool
	Debug        *DebugInfo

	file *File

	// Per-region state
	code     []byte
	depth    int
	maxStack int
	loops    []*openLoop
	srcMap   []SourceLoc

	err error
}

// openLoop tracks the pending break/continue patch lists of a loop that is
// currently being emitted.
type openLoop struct {
	id        int
	breaks    []int // operand offsets patched to just after the loop
	continues []int // operand offsets patched to the loop's continue target
}

// NewEmitter creates an emitter.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Emit translates the program. sourcePath, when non-empty, is recorded in a
// SourceFile attribute.
func (e *Emitter) Emit(program *compiler.Program, sourcePath string) (*File, error) {
	e.file = NewFile()
	if e.CollectDebug {
		e.Debug = &DebugInfo{}
	}

	// The top-level region first, then one region per function.
	var funs []*compiler.FunDecl
	e.beginRegion()
	for _, stmt := range program.Stmts {
		if fun, ok := stmt.(*compiler.FunDecl); ok {
			funs = append(funs, fun)
			continue
		}
		e.stmt(stmt)
	}
	e.op(OpHalt)
	e.endRegion(uint16(program.NumLocals))

	for _, fun := range funs {
		e.beginRegion()
		for _, stmt := range fun.Body.Stmts {
			e.stmt(stmt)
		}
		e.op(OpHalt)
		e.endRegion(uint16(fun.NumLocals))
	}

	if sourcePath != "" {
		nameIndex := e.file.Pool.PushUtf8(AttrSourceFile)
		pathIndex := e.file.Pool.PushUtf8(sourcePath)
		e.file.Attributes = append(e.file.Attributes, Attribute{
			NameIndex:  nameIndex,
			SourceFile: &SourceFileAttr{SourceFileIndex: pathIndex},
		})
	}

	if e.err != nil {
		return nil, e.err
	}
	return e.file, nil
}

func (e *Emitter) beginRegion() {
	e.code = make([]byte, 0, 64)
	e.depth = 0
	e.maxStack = 0
	e.loops = nil
	e.srcMap = nil
}

func (e *Emitter) endRegion(maxLocals uint16) {
	nameIndex := e.file.Pool.PushUtf8(AttrCode)
	e.file.Attributes = append(e.file.Attributes, Attribute{
		NameIndex: nameIndex,
		Code: &CodeAttr{
			MaxStack:  uint16(e.maxStack),
			MaxLocals: maxLocals,
			Code:      e.code,
		},
	})
	if e.Debug != nil {
		e.Debug.Regions = append(e.Debug.Regions, RegionDebug{SourceMap: e.srcMap})
	}
}

func (e *Emitter) internalf(format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("internal error: "+format, args...)
	}
}

// ---------------------------------------------------------------------------
// Instruction assembly
// ---------------------------------------------------------------------------

// push adjusts the tracked stack depth upward.
func (e *Emitter) push(n int) {
	e.depth += n
	if e.depth > e.maxStack {
		e.maxStack = e.depth
	}
}

// pop adjusts the tracked stack depth downward.
func (e *Emitter) pop(n int) {
	e.depth -= n
	if e.depth < 0 {
		e.internalf("operand stack depth went negative at offset %d", len(e.code))
	}
}

// op appends a single-byte instruction.
func (e *Emitter) op(op Opcode) {
	e.code = append(e.code, byte(op))
}

// opU16 appends an instruction with a u16 operand.
func (e *Emitter) opU16(op Opcode, operand uint16) {
	e.code = append(e.code, byte(op), byte(operand>>8), byte(operand))
}

// emitJump appends a branch with a placeholder offset and returns the
// offset of the placeholder for patching.
func (e *Emitter) emitJump(op Opcode) int {
	e.code = append(e.code, byte(op), 0xFF, 0xFF)
	return len(e.code) - 2
}

// patchJump resolves a placeholder to branch to the current position.
func (e *Emitter) patchJump(operandOffset int) {
	e.patchJumpTo(operandOffset, len(e.code))
}

// patchJumpTo resolves a placeholder to branch to target. Offsets are
// signed 16-bit, relative to the instruction following the branch.
func (e *Emitter) patchJumpTo(operandOffset, target int) {
	delta := target - (operandOffset + 2)
	if delta < math.MinInt16 || delta > math.MaxInt16 {
		e.internalf("jump offset %d out of range", delta)
		return
	}
	binary.BigEndian.PutUint16(e.code[operandOffset:], uint16(int16(delta)))
}

// emitLoop appends an unconditional backward branch to target.
func (e *Emitter) emitLoop(target int) {
	operand := e.emitJump(OpJmp)
	e.patchJumpTo(operand, target)
}

// mark records a source location for the current code offset.
func (e *Emitter) mark(span compiler.Span) {
	if e.Debug == nil {
		return
	}
	e.srcMap = append(e.srcMap, SourceLoc{
		Offset: uint32(len(e.code)),
		Line:   uint32(span.Start.Line),
		Column: uint32(span.Start.Column),
	})
}

// ---------------------------------------------------------------------------
// Statement emission
// ---------------------------------------------------------------------------

func (e *Emitter) stmt(stmt compiler.Stmt) {
	entryDepth := e.depth
	e.mark(stmt.Span())

	switch st := stmt.(type) {
	case *compiler.VarDecl:
		if st.Init != nil {
			e.expr(st.Init)
		} else {
			// Uninitialized variables start as nil.
			e.opU16(OpLdc, 0)
			e.push(1)
		}
		e.store(st.Slot)

	case *compiler.FunDecl:
		e.internalf("nested function declaration survived attribution")

	case *compiler.ExprStmt:
		// An assignment used as a statement stores without re-loading;
		// any other expression is evaluated and discarded.
		if assign, ok := st.Expr.(*compiler.Assign); ok {
			e.expr(assign.Value)
			e.store(assign.Slot)
		} else {
			e.expr(st.Expr)
			e.op(OpPop)
			e.pop(1)
		}

	case *compiler.PrintStmt:
		e.expr(st.Expr)
		e.op(OpPrint)
		e.pop(1)

	case *compiler.ReturnStmt:
		if st.Value != nil {
			e.expr(st.Value)
			e.pop(1)
		}
		e.op(OpHalt)

	case *compiler.BlockStmt:
		for _, s := range st.Stmts {
			e.stmt(s)
		}

	case *compiler.IfStmt:
		e.ifStmt(st)

	case *compiler.WhileStmt:
		e.whileStmt(st)

	case *compiler.ForStmt:
		e.forStmt(st)

	case *compiler.BreakStmt:
		loop := e.findLoop(st.LoopID)
		if loop == nil {
			e.internalf("unresolved break target")
			return
		}
		loop.breaks = append(loop.breaks, e.emitJump(OpJmp))

	case *compiler.ContinueStmt:
		loop := e.findLoop(st.LoopID)
		if loop == nil {
			e.internalf("unresolved continue target")
			return
		}
		loop.continues = append(loop.continues, e.emitJump(OpJmp))

	default:
		e.internalf("unknown statement %T", stmt)
	}

	if e.depth != entryDepth {
		e.internalf("statement left operand stack unbalanced (%d != %d)", e.depth, entryDepth)
	}
}

func (e *Emitter) ifStmt(st *compiler.IfStmt) {
	e.expr(st.Cond)

	elseJump := e.emitJump(OpIfFalsy)
	e.op(OpPop)
	e.pop(1)
	e.stmt(st.Then)

	endJump := e.emitJump(OpJmp)
	e.patchJump(elseJump)
	e.op(OpPop) // discriminant on the else path; depth accounted above
	if st.Else != nil {
		e.stmt(st.Else)
	}
	e.patchJump(endJump)
}

func (e *Emitter) whileStmt(st *compiler.WhileStmt) {
	condStart := len(e.code)
	e.expr(st.Cond)

	exitJump := e.emitJump(OpIfFalsy)
	e.op(OpPop)
	e.pop(1)

	loop := &openLoop{id: st.LoopID}
	e.loops = append(e.loops, loop)
	e.stmt(st.Body)
	e.loops = e.loops[:len(e.loops)-1]

	e.emitLoop(condStart)

	e.patchJump(exitJump)
	e.op(OpPop) // discriminant on the exit path

	for _, operand := range loop.breaks {
		e.patchJump(operand)
	}
	for _, operand := range loop.continues {
		e.patchJumpTo(operand, condStart)
	}
}

func (e *Emitter) forStmt(st *compiler.ForStmt) {
	if st.Init != nil {
		e.stmt(st.Init)
	}

	condStart := len(e.code)
	if st.Cond != nil {
		e.expr(st.Cond)
	} else {
		// An omitted condition means true.
		e.op(OpBPush1)
		e.push(1)
	}

	exitJump := e.emitJump(OpIfFalsy)
	e.op(OpPop)
	e.pop(1)

	loop := &openLoop{id: st.LoopID}
	e.loops = append(e.loops, loop)
	e.stmt(st.Body)
	e.loops = e.loops[:len(e.loops)-1]

	stepStart := len(e.code)
	if st.Step != nil {
		e.expr(st.Step)
		e.op(OpPop)
		e.pop(1)
	}
	e.emitLoop(condStart)

	e.patchJump(exitJump)
	e.op(OpPop) // discriminant on the exit path

	for _, operand := range loop.breaks {
		e.patchJump(operand)
	}
	for _, operand := range loop.continues {
		e.patchJumpTo(operand, stepStart)
	}
}

// findLoop locates the open loop frame with the given id.
func (e *Emitter) findLoop(id int) *openLoop {
	for i := len(e.loops) - 1; i >= 0; i-- {
		if e.loops[i].id == id {
			return e.loops[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Expression emission
// ---------------------------------------------------------------------------

func (e *Emitter) expr(expr compiler.Expr) {
	switch ex := expr.(type) {
	case *compiler.Literal:
		e.literal(ex.Value)

	case *compiler.Identifier:
		e.load(ex.Slot)

	case *compiler.Assign:
		// The assigned value is needed: store, then re-load the slot.
		e.expr(ex.Value)
		e.store(ex.Slot)
		e.load(ex.Slot)

	case *compiler.Grouping:
		e.expr(ex.Inner)

	case *compiler.Unary:
		e.unary(ex)

	case *compiler.Binary:
		e.binary(ex)

	default:
		e.internalf("unknown expression %T", expr)
	}
}

func (e *Emitter) literal(v compiler.Const) {
	switch v.Kind {
	case compiler.ConstNumber:
		e.opU16(OpLdc, e.file.Pool.PushNumber(v.Num))
	case compiler.ConstString:
		e.opU16(OpLdc, e.file.Pool.PushString(v.Str))
	case compiler.ConstBool:
		if v.Bool {
			e.op(OpBPush1)
		} else {
			e.op(OpBPush0)
		}
	case compiler.ConstNil:
		// The reserved pool index 0 loads as nil.
		e.opU16(OpLdc, 0)
	}
	e.push(1)
}

// load emits the shortest form for pushing a local.
func (e *Emitter) load(slot int) {
	if slot < 0 {
		e.internalf("unresolved local slot")
		return
	}
	switch slot {
	case 0:
		e.op(OpLoad0)
	case 1:
		e.op(OpLoad1)
	case 2:
		e.op(OpLoad2)
	case 3:
		e.op(OpLoad3)
	default:
		e.opU16(OpLoad, uint16(slot))
	}
	e.push(1)
}

// store emits the shortest form for popping into a local.
func (e *Emitter) store(slot int) {
	if slot < 0 {
		e.internalf("unresolved local slot")
		return
	}
	switch slot {
	case 0:
		e.op(OpStore0)
	case 1:
		e.op(OpStore1)
	case 2:
		e.op(OpStore2)
	case 3:
		e.op(OpStore3)
	default:
		e.opU16(OpStore, uint16(slot))
	}
	e.pop(1)
}

func (e *Emitter) unary(ex *compiler.Unary) {
	switch ex.Op {
	case compiler.TokenMinus:
		// There is no negate opcode; -x is 0 - x.
		e.opU16(OpLdc, e.file.Pool.PushNumber(0))
		e.push(1)
		e.expr(ex.Operand)
		e.op(OpSub)
		e.pop(1)

	case compiler.TokenBang:
		// There is no not opcode; branch on the operand and push the
		// inverse boolean.
		e.expr(ex.Operand)
		falsyJump := e.emitJump(OpIfFalsy)
		e.op(OpPop)
		e.pop(1)
		e.op(OpBPush0)
		e.push(1)
		endJump := e.emitJump(OpJmp)
		e.patchJump(falsyJump)
		// The falsy path pops the operand and pushes its own boolean; the
		// depth effect matches the truthy path already accounted above.
		e.op(OpPop)
		e.op(OpBPush1)
		e.patchJump(endJump)

	default:
		e.internalf("unknown unary operator %s", ex.Op)
	}
}

func (e *Emitter) binary(ex *compiler.Binary) {
	switch ex.Op {
	case compiler.TokenAnd:
		// Short-circuit: a falsy left value is the result.
		e.expr(ex.Left)
		endJump := e.emitJump(OpIfFalsy)
		e.op(OpPop)
		e.pop(1)
		e.expr(ex.Right)
		e.patchJump(endJump)
		return

	case compiler.TokenOr:
		e.expr(ex.Left)
		endJump := e.emitJump(OpIfTruthy)
		e.op(OpPop)
		e.pop(1)
		e.expr(ex.Right)
		e.patchJump(endJump)
		return

	case compiler.TokenPlus, compiler.TokenMinus, compiler.TokenAsterisk, compiler.TokenSlash:
		e.expr(ex.Left)
		e.expr(ex.Right)
		switch ex.Op {
		case compiler.TokenPlus:
			e.op(OpAdd)
		case compiler.TokenMinus:
			e.op(OpSub)
		case compiler.TokenAsterisk:
			e.op(OpMult)
		case compiler.TokenSlash:
			e.op(OpDiv)
		}
		e.pop(1)
		return
	}

	// Comparisons. When the right operand is the literal 0 the single
	// operand 'z' form is used. The offset operand is 0 either way: the
	// pushed boolean is the result and the branch is a fall-through.
	e.expr(ex.Left)
	if isZeroLiteral(ex.Right) {
		e.opU16(comparisonZeroOp(ex.Op), 0)
		return // pops one, pushes one
	}
	e.expr(ex.Right)
	e.opU16(comparisonOp(ex.Op), 0)
	e.pop(1)
}

func isZeroLiteral(expr compiler.Expr) bool {
	lit, ok := expr.(*compiler.Literal)
	return ok && lit.Value.Kind == compiler.ConstNumber && lit.Value.Num == 0
}

func comparisonOp(op compiler.TokenType) Opcode {
	switch op {
	case compiler.TokenEqEq:
		return OpIfEq
	case compiler.TokenBangEq:
		return OpIfNe
	case compiler.TokenLt:
		return OpIfLt
	case compiler.TokenLtEq:
		return OpIfLe
	case compiler.TokenGt:
		return OpIfGt
	case compiler.TokenGtEq:
		return OpIfGe
	}
	return OpNop
}

func comparisonZeroOp(op compiler.TokenType) Opcode {
	switch op {
	case compiler.TokenEqEq:
		return OpIfEqz
	case compiler.TokenBangEq:
		return OpIfNez
	case compiler.TokenLt:
		return OpIfLtz
	case compiler.TokenLtEq:
		return OpIfLez
	case compiler.TokenGt:
		return OpIfGtz
	case compiler.TokenGtEq:
		return OpIfGez
	}
	return OpNop
}
