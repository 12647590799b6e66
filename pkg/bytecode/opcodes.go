package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
type Opcode byte

const (
	OpNop  Opcode = 0x00 // No operation
	OpHalt Opcode = 0x01 // End execution
	OpAdd  Opcode = 0x02 // Pop two numbers, push sum (two strings: concatenation)
	OpSub  Opcode = 0x03 // Pop two numbers, push difference
	OpMult Opcode = 0x04 // Pop two numbers, push product
	OpDiv  Opcode = 0x05 // Pop two numbers, push quotient

	OpPrint Opcode = 0x06 // Pop and write to stdout

	// Comparisons pop their operand(s), push the boolean result, and branch
	// by the signed 16-bit offset only when the result is true. The 'z'
	// forms pop a single operand and compare it against zero.
	OpIfEq  Opcode = 0x07 // a == b       /offset i16/
	OpIfEqz Opcode = 0x08 // a == 0       /offset i16/
	OpIfNe  Opcode = 0x09 // a != b       /offset i16/
	OpIfNez Opcode = 0x0A // a != 0       /offset i16/
	OpIfLt  Opcode = 0x0B // a < b        /offset i16/
	OpIfLtz Opcode = 0x0C // a < 0        /offset i16/
	OpIfLe  Opcode = 0x0D // a <= b       /offset i16/
	OpIfLez Opcode = 0x0E // a <= 0       /offset i16/
	OpIfGt  Opcode = 0x0F // a > b        /offset i16/
	OpIfGtz Opcode = 0x10 // a > 0        /offset i16/
	OpIfGe  Opcode = 0x11 // a >= b       /offset i16/
	OpIfGez Opcode = 0x12 // a >= 0       /offset i16/

	OpLdc    Opcode = 0x13 // Push constant      /cp_index u16/
	OpBPush0 Opcode = 0x14 // Push false
	OpBPush1 Opcode = 0x15 // Push true

	OpStore  Opcode = 0x16 // Pop into local     /var_index u16/
	OpStore0 Opcode = 0x17 // Pop into local 0
	OpStore1 Opcode = 0x18 // Pop into local 1
	OpStore2 Opcode = 0x19 // Pop into local 2
	OpStore3 Opcode = 0x1A // Pop into local 3

	OpLoad  Opcode = 0x1B // Push local         /var_index u16/
	OpLoad0 Opcode = 0x1C // Push local 0
	OpLoad1 Opcode = 0x1D // Push local 1
	OpLoad2 Opcode = 0x1E // Push local 2
	OpLoad3 Opcode = 0x1F // Push local 3

	// iftruthy/iffalsy inspect the top of stack WITHOUT popping; the
	// emitter follows them with an explicit pop wherever the inspected
	// value is no longer needed (and/or keep it as the result when they
	// branch).
	OpIfTruthy Opcode = 0x20 // Branch if TOS truthy  /offset i16/
	OpIfFalsy  Opcode = 0x21 // Branch if TOS falsy   /offset i16/

	OpJmp Opcode = 0x22 // Unconditional branch     /offset i16/
	OpPop Opcode = 0x23 // Pop top of stack
)

// OpcodeInfo provides metadata about each opcode.
type OpcodeInfo struct {
	Mnemonic   string
	OperandLen int // operand bytes following the opcode byte
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:      {"nop", 0},
	OpHalt:     {"halt", 0},
	OpAdd:      {"add", 0},
	OpSub:      {"sub", 0},
	OpMult:     {"mult", 0},
	OpDiv:      {"div", 0},
	OpPrint:    {"print", 0},
	OpIfEq:     {"ifeq", 2},
	OpIfEqz:    {"ifeqz", 2},
	OpIfNe:     {"ifne", 2},
	OpIfNez:    {"ifnez", 2},
	OpIfLt:     {"iflt", 2},
	OpIfLtz:    {"ifltz", 2},
	OpIfLe:     {"ifle", 2},
	OpIfLez:    {"iflez", 2},
	OpIfGt:     {"ifgt", 2},
	OpIfGtz:    {"ifgtz", 2},
	OpIfGe:     {"ifge", 2},
	OpIfGez:    {"ifgez", 2},
	OpLdc:      {"ldc", 2},
	OpBPush0:   {"bpush_0", 0},
	OpBPush1:   {"bpush_1", 0},
	OpStore:    {"store", 2},
	OpStore0:   {"store_0", 0},
	OpStore1:   {"store_1", 0},
	OpStore2:   {"store_2", 0},
	OpStore3:   {"store_3", 0},
	OpLoad:     {"load", 2},
	OpLoad0:    {"load_0", 0},
	OpLoad1:    {"load_1", 0},
	OpLoad2:    {"load_2", 0},
	OpLoad3:    {"load_3", 0},
	OpIfTruthy: {"iftruthy", 2},
	OpIfFalsy:  {"iffalsy", 2},
	OpJmp:      {"jmp", 2},
	OpPop:      {"pop", 0},
}

// GetOpcodeInfo returns metadata for an opcode. Unknown opcodes get a
// placeholder mnemonic and no operands.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Mnemonic: fmt.Sprintf("unknown(0x%02X)", byte(op))}
}

// IsValid reports whether the opcode is defined.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the opcode's mnemonic.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Mnemonic
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction.
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsBranch reports whether this opcode carries a jump offset operand.
func (op Opcode) IsBranch() bool {
	return (op >= OpIfEq && op <= OpIfGez) || op == OpIfTruthy || op == OpIfFalsy || op == OpJmp
}

// AllOpcodes returns every defined opcode.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	return ops
}
