package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/yklang/yuvakriti/pkg/bytecode"
)

var log = commonlog.GetLogger("vm")

// ---------------------------------------------------------------------------
// Runtime faults
// ---------------------------------------------------------------------------

// FaultKind classifies a fatal runtime error.
type FaultKind int

const (
	StackUnderflow FaultKind = iota
	StackOverflow
	BadLocalIndex
	BadConstantIndex
	BadJumpTarget
	TypeError
)

func (k FaultKind) String() string {
	switch k {
	case StackUnderflow:
		return "StackUnderflow"
	case StackOverflow:
		return "StackOverflow"
	case BadLocalIndex:
		return "BadLocalIndex"
	case BadConstantIndex:
		return "BadConstantIndex"
	case BadJumpTarget:
		return "BadJumpTarget"
	case TypeError:
		return "TypeError"
	}
	return fmt.Sprintf("FaultKind(%d)", int(k))
}

// RuntimeError is a fatal fault raised by the VM. It ends the run.
type RuntimeError struct {
	Kind    FaultKind
	Message string
	PC      int // byte offset of the faulting instruction
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s (at offset 0x%04x)", e.Kind, e.Message, e.PC)
}

// ---------------------------------------------------------------------------
// Virtual machine
// ---------------------------------------------------------------------------

// VM executes the top-level Code attribute of a loaded bytecode file on an
// operand stack with a local-variable array. It is single-threaded and
// owns its stack and locals only for the duration of Run.
type VM struct {
	// Out receives print output. Defaults to standard output.
	Out io.Writer

	code   []byte
	consts []Value // 1-based; consts[0] is Null for the reserved index
	stack  []Value
	sp     int
	locals []Value
	pc     int
	opPC   int // offset of the opcode currently executing
	halted bool
}

// New prepares a VM for the file's top-level Code attribute. Constants are
// decoded and strings interned once, up front.
func New(file *bytecode.File) (*VM, error) {
	code := file.MainCode()
	if code == nil {
		return nil, fmt.Errorf("missing Code attribute")
	}

	consts := make([]Value, file.Pool.Count()+1)
	consts[0] = Null
	for i, entry := range file.Pool.Entries() {
		switch entry.Kind {
		case bytecode.EntryNumber:
			consts[i+1] = NumberValue(entry.Num)
		case bytecode.EntryString:
			if text, ok := file.Pool.LookupString(uint16(i + 1)); ok {
				consts[i+1] = StringValue(text)
			}
		}
		// Utf8 entries stay Null; ldc never references them.
	}

	locals := make([]Value, code.MaxLocals)
	for i := range locals {
		locals[i] = Null
	}

	return &VM{
		Out:    os.Stdout,
		code:   code.Code,
		consts: consts,
		stack:  make([]Value, code.MaxStack),
		locals: locals,
	}, nil
}

// Run executes the loaded code until halt. A returned *RuntimeError is
// fatal; the operand stack and locals are released either way.
func (v *VM) Run() error {
	log.Debugf("executing %d bytes of code (max_stack=%d, max_locals=%d)",
		len(v.code), len(v.stack), len(v.locals))
	err := v.run()
	v.stack = nil
	v.locals = nil
	return err
}

func (v *VM) run() error {
	for !v.halted {
		if v.pc == len(v.code) {
			// Running off the end of the code array ends the run.
			return nil
		}
		if v.pc > len(v.code) {
			return v.fault(BadJumpTarget, "program counter out of range")
		}

		v.opPC = v.pc
		op := bytecode.Opcode(v.code[v.pc])
		v.pc++

		var err error
		switch op {
		case bytecode.OpNop:
			// nothing

		case bytecode.OpHalt:
			v.halted = true

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMult, bytecode.OpDiv:
			err = v.arith(op)

		case bytecode.OpPrint:
			var val Value
			if val, err = v.popValue(); err == nil {
				fmt.Fprintln(v.Out, val.String())
			}

		case bytecode.OpIfEq, bytecode.OpIfNe, bytecode.OpIfLt,
			bytecode.OpIfLe, bytecode.OpIfGt, bytecode.OpIfGe:
			err = v.compare(op)

		case bytecode.OpIfEqz, bytecode.OpIfNez, bytecode.OpIfLtz,
			bytecode.OpIfLez, bytecode.OpIfGtz, bytecode.OpIfGez:
			err = v.compareZero(op)

		case bytecode.OpLdc:
			err = v.loadConstant()

		case bytecode.OpBPush0:
			err = v.pushValue(BoolValue(false))

		case bytecode.OpBPush1:
			err = v.pushValue(BoolValue(true))

		case bytecode.OpStore:
			var index uint16
			if index, err = v.operand(); err == nil {
				err = v.storeLocal(int(index))
			}

		case bytecode.OpStore0, bytecode.OpStore1, bytecode.OpStore2, bytecode.OpStore3:
			err = v.storeLocal(int(op - bytecode.OpStore0))

		case bytecode.OpLoad:
			var index uint16
			if index, err = v.operand(); err == nil {
				err = v.loadLocal(int(index))
			}

		case bytecode.OpLoad0, bytecode.OpLoad1, bytecode.OpLoad2, bytecode.OpLoad3:
			err = v.loadLocal(int(op - bytecode.OpLoad0))

		case bytecode.OpIfTruthy, bytecode.OpIfFalsy:
			var offset int16
			if offset, err = v.branchOperand(); err != nil {
				break
			}
			var top Value
			if top, err = v.peekValue(); err != nil {
				break
			}
			if top.Truthy() == (op == bytecode.OpIfTruthy) {
				err = v.branch(offset)
			}

		case bytecode.OpJmp:
			var offset int16
			if offset, err = v.branchOperand(); err == nil {
				err = v.branch(offset)
			}

		case bytecode.OpPop:
			_, err = v.popValue()

		default:
			err = v.fault(BadJumpTarget, fmt.Sprintf("unknown opcode 0x%02X", byte(op)))
		}

		if err != nil {
			return err
		}
	}
	return nil
}

func (v *VM) fault(kind FaultKind, message string) error {
	return &RuntimeError{Kind: kind, Message: message, PC: v.opPC}
}

// operand reads the u16 operand of the current instruction.
func (v *VM) operand() (uint16, error) {
	if v.pc+2 > len(v.code) {
		return 0, v.fault(BadJumpTarget, "truncated instruction")
	}
	operand := binary.BigEndian.Uint16(v.code[v.pc:])
	v.pc += 2
	return operand, nil
}

// branchOperand reads a signed 16-bit branch offset.
func (v *VM) branchOperand() (int16, error) {
	operand, err := v.operand()
	return int16(operand), err
}

// branch applies a branch offset relative to the instruction that follows.
func (v *VM) branch(offset int16) error {
	target := v.pc + int(offset)
	if target < 0 || target > len(v.code) {
		return v.fault(BadJumpTarget, fmt.Sprintf("jump target %d out of range", target))
	}
	v.pc = target
	return nil
}

func (v *VM) pushValue(val Value) error {
	if v.sp >= len(v.stack) {
		return v.fault(StackOverflow, "operand stack overflow")
	}
	v.stack[v.sp] = val
	v.sp++
	return nil
}

func (v *VM) popValue() (Value, error) {
	if v.sp == 0 {
		return Null, v.fault(StackUnderflow, "operand stack underflow")
	}
	v.sp--
	return v.stack[v.sp], nil
}

func (v *VM) peekValue() (Value, error) {
	if v.sp == 0 {
		return Null, v.fault(StackUnderflow, "operand stack underflow")
	}
	return v.stack[v.sp-1], nil
}

func (v *VM) loadConstant() error {
	index, err := v.operand()
	if err != nil {
		return err
	}
	if index == 0 {
		// The reserved pool index loads as null.
		return v.pushValue(Null)
	}
	if int(index) >= len(v.consts) {
		return v.fault(BadConstantIndex, fmt.Sprintf("constant index %d out of range", index))
	}
	val := v.consts[index]
	if val.Kind == ValueNull {
		return v.fault(BadConstantIndex, fmt.Sprintf("constant index %d is not loadable", index))
	}
	return v.pushValue(val)
}

func (v *VM) loadLocal(index int) error {
	if index >= len(v.locals) {
		return v.fault(BadLocalIndex, fmt.Sprintf("local index %d out of range", index))
	}
	return v.pushValue(v.locals[index])
}

func (v *VM) storeLocal(index int) error {
	if index >= len(v.locals) {
		return v.fault(BadLocalIndex, fmt.Sprintf("local index %d out of range", index))
	}
	val, err := v.popValue()
	if err != nil {
		return err
	}
	v.locals[index] = val
	return nil
}

// arith executes add/sub/mult/div. Arithmetic follows IEEE-754 double
// semantics; division by zero yields an infinity or NaN, not a fault.
// add additionally concatenates two strings.
func (v *VM) arith(op bytecode.Opcode) error {
	b, err := v.popValue()
	if err != nil {
		return err
	}
	a, err := v.popValue()
	if err != nil {
		return err
	}

	if op == bytecode.OpAdd && a.Kind == ValueString && b.Kind == ValueString {
		return v.pushValue(StringValue(a.Str + b.Str))
	}
	if a.Kind != ValueNumber || b.Kind != ValueNumber {
		return v.fault(TypeError, fmt.Sprintf("cannot apply '%s' to %s and %s", op, a.Kind, b.Kind))
	}

	var result float64
	switch op {
	case bytecode.OpAdd:
		result = a.Num + b.Num
	case bytecode.OpSub:
		result = a.Num - b.Num
	case bytecode.OpMult:
		result = a.Num * b.Num
	case bytecode.OpDiv:
		result = a.Num / b.Num
	}
	return v.pushValue(NumberValue(result))
}

// compare executes the two-operand comparison opcodes: pop two, push the
// boolean result, and branch only when the result is true.
func (v *VM) compare(op bytecode.Opcode) error {
	offset, err := v.branchOperand()
	if err != nil {
		return err
	}
	b, err := v.popValue()
	if err != nil {
		return err
	}
	a, err := v.popValue()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case bytecode.OpIfEq:
		result = a.Equals(b)
	case bytecode.OpIfNe:
		result = !a.Equals(b)
	default:
		result, err = v.ordered(op, a, b)
		if err != nil {
			return err
		}
	}

	if err := v.pushValue(BoolValue(result)); err != nil {
		return err
	}
	if result {
		return v.branch(offset)
	}
	return nil
}

// ordered evaluates <, <=, >, >= over two same-kind operands: numbers
// numerically, strings lexicographically.
func (v *VM) ordered(op bytecode.Opcode, a, b Value) (bool, error) {
	if a.Kind == ValueNumber && b.Kind == ValueNumber {
		switch op {
		case bytecode.OpIfLt:
			return a.Num < b.Num, nil
		case bytecode.OpIfLe:
			return a.Num <= b.Num, nil
		case bytecode.OpIfGt:
			return a.Num > b.Num, nil
		case bytecode.OpIfGe:
			return a.Num >= b.Num, nil
		}
	}
	if a.Kind == ValueString && b.Kind == ValueString {
		switch op {
		case bytecode.OpIfLt:
			return a.Str < b.Str, nil
		case bytecode.OpIfLe:
			return a.Str <= b.Str, nil
		case bytecode.OpIfGt:
			return a.Str > b.Str, nil
		case bytecode.OpIfGe:
			return a.Str >= b.Str, nil
		}
	}
	return false, v.fault(TypeError, fmt.Sprintf("cannot compare %s and %s", a.Kind, b.Kind))
}

// compareZero executes the single-operand zero-comparison opcodes.
func (v *VM) compareZero(op bytecode.Opcode) error {
	offset, err := v.branchOperand()
	if err != nil {
		return err
	}
	a, err := v.popValue()
	if err != nil {
		return err
	}

	var result bool
	switch op {
	case bytecode.OpIfEqz:
		result = a.Kind == ValueNumber && a.Num == 0
	case bytecode.OpIfNez:
		result = !(a.Kind == ValueNumber && a.Num == 0)
	default:
		if a.Kind != ValueNumber {
			return v.fault(TypeError, fmt.Sprintf("cannot compare %s against zero", a.Kind))
		}
		switch op {
		case bytecode.OpIfLtz:
			result = a.Num < 0
		case bytecode.OpIfLez:
			result = a.Num <= 0
		case bytecode.OpIfGtz:
			result = a.Num > 0
		case bytecode.OpIfGez:
			result = a.Num >= 0
		}
	}

	if err := v.pushValue(BoolValue(result)); err != nil {
		return err
	}
	if result {
		return v.branch(offset)
	}
	return nil
}
