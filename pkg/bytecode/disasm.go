package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Disassembler
// ---------------------------------------------------------------------------

// Disassemble returns a human-readable listing of the file: header,
// constant pool, and each attribute's decoded contents.
func (f *File) Disassemble() string {
	return f.DisassembleWithDebug(nil)
}

// DisassembleWithDebug is Disassemble with source line annotations taken
// from a debug sidecar. debug may be nil.
func (f *File) DisassembleWithDebug(debug *DebugInfo) string {
	var sb strings.Builder

	sb.WriteString("========= YKB =========\n")
	sb.WriteString(fmt.Sprintf("major version: %d\n", f.Version.Major))
	sb.WriteString(fmt.Sprintf("minor version: %d\n", f.Version.Minor))

	sb.WriteString("Constant pool:\n")
	for i, entry := range f.Pool.Entries() {
		display := entry.String()
		display = strings.ReplaceAll(display, "\n", "\\n")
		display = strings.ReplaceAll(display, "\t", "\\t")
		sb.WriteString(fmt.Sprintf("    #%d: %-10s %s\n", i+1, entry.TypeName(), display))
	}

	sb.WriteString("Attributes:\n")
	region := 0
	for _, attr := range f.Attributes {
		switch {
		case attr.Code != nil:
			sb.WriteString(fmt.Sprintf("    Code (max_stack=%d, max_locals=%d, code_length=%d):\n",
				attr.Code.MaxStack, attr.Code.MaxLocals, len(attr.Code.Code)))
			f.disassembleCode(&sb, attr.Code, debug, region)
			region++

		case attr.SourceFile != nil:
			name := "?"
			if entry, ok := f.Pool.Get(attr.SourceFile.SourceFileIndex); ok && entry.Kind == EntryUtf8 {
				name = string(entry.Bytes)
			}
			sb.WriteString(fmt.Sprintf("    SourceFile: %s\n", name))
		}
	}

	return sb.String()
}

func (f *File) disassembleCode(sb *strings.Builder, code *CodeAttr, debug *DebugInfo, region int) {
	offset := 0
	for offset < len(code.Code) {
		line, length := f.disassembleInstruction(code.Code, offset)
		if loc, ok := debug.Location(region, uint32(offset)); ok {
			sb.WriteString(fmt.Sprintf("        %04x: %-24s ; line %d:%d\n", offset, line, loc.Line, loc.Column))
		} else {
			sb.WriteString(fmt.Sprintf("        %04x: %s\n", offset, line))
		}
		if length <= 0 {
			break
		}
		offset += length
	}
}

// disassembleInstruction renders one instruction, returning the text and
// the instruction length.
func (f *File) disassembleInstruction(code []byte, offset int) (string, int) {
	op := Opcode(code[offset])
	info := GetOpcodeInfo(op)

	if info.OperandLen == 0 {
		return info.Mnemonic, 1
	}
	if offset+1+info.OperandLen > len(code) {
		return fmt.Sprintf("%s <truncated>", info.Mnemonic), len(code) - offset
	}

	operand := binary.BigEndian.Uint16(code[offset+1:])
	switch op {
	case OpLdc:
		comment := "nil"
		if entry, ok := f.Pool.Get(operand); ok {
			if text, sok := f.Pool.LookupString(operand); sok {
				comment = fmt.Sprintf("%q", text)
			} else {
				comment = entry.String()
			}
		}
		return fmt.Sprintf("%s #%d (%s)", info.Mnemonic, operand, comment), 3

	case OpLoad, OpStore:
		return fmt.Sprintf("%s %d", info.Mnemonic, operand), 3
	}

	if op.IsBranch() {
		delta := int(int16(operand))
		target := offset + 3 + delta
		return fmt.Sprintf("%s %+d (-> %04x)", info.Mnemonic, delta, target), 3
	}
	return fmt.Sprintf("%s %d", info.Mnemonic, operand), 3
}
