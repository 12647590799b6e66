package bytecode

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/yklang/yuvakriti/compiler"
)

func emitSource(t *testing.T, source string) *File {
	t.Helper()
	c := compiler.NewCompiler()
	program, hasErrors := c.Compile(source)
	if hasErrors {
		t.Fatalf("compile errors: %v", c.Diagnostics.Diagnostics)
	}
	file, err := NewEmitter().Emit(program, "test.yk")
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	return file
}

// opcodeBoundaries walks a code array and returns the set of valid
// instruction start offsets, failing on unknown opcodes or truncation.
func opcodeBoundaries(t *testing.T, code []byte) map[int]bool {
	t.Helper()
	boundaries := make(map[int]bool)
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		if !op.IsValid() {
			t.Fatalf("unknown opcode 0x%02X at offset %d", code[offset], offset)
		}
		boundaries[offset] = true
		if offset+op.InstructionLen() > len(code) {
			t.Fatalf("truncated instruction at offset %d", offset)
		}
		offset += op.InstructionLen()
	}
	boundaries[len(code)] = true
	return boundaries
}

// checkJumpTargets verifies that every branch resolves to an opcode
// boundary inside the code array.
func checkJumpTargets(t *testing.T, code []byte) {
	t.Helper()
	boundaries := opcodeBoundaries(t, code)
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		if op.IsBranch() {
			delta := int(int16(binary.BigEndian.Uint16(code[offset+1:])))
			target := offset + 3 + delta
			if !boundaries[target] {
				t.Errorf("%s at %d jumps to %d, not an opcode boundary", op, offset, target)
			}
		}
		offset += op.InstructionLen()
	}
}

func TestEmitPrintString(t *testing.T) {
	file := emitSource(t, `print "Hello World!";`)
	code := file.MainCode()
	if code == nil {
		t.Fatal("no Code attribute")
	}

	strIdx := uint16(0)
	for i := range file.Pool.Entries() {
		if _, ok := file.Pool.LookupString(uint16(i + 1)); ok {
			strIdx = uint16(i + 1)
		}
	}
	want := []byte{
		byte(OpLdc), byte(strIdx >> 8), byte(strIdx),
		byte(OpPrint),
		byte(OpHalt),
	}
	if !bytes.Equal(code.Code, want) {
		t.Errorf("code = % x, want % x", code.Code, want)
	}
	if code.MaxStack != 1 {
		t.Errorf("max_stack = %d, want 1", code.MaxStack)
	}
	if code.MaxLocals != 0 {
		t.Errorf("max_locals = %d, want 0", code.MaxLocals)
	}
}

func TestEmitShortLocalForms(t *testing.T) {
	file := emitSource(t, `
		var a = 1; var b = 2; var c = 3; var d = 4; var e = 5;
		print a; print b; print c; print d; print e;
	`)
	code := file.MainCode().Code

	counts := map[Opcode]int{}
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		counts[op]++
		offset += op.InstructionLen()
	}

	for _, op := range []Opcode{OpStore0, OpStore1, OpStore2, OpStore3, OpLoad0, OpLoad1, OpLoad2, OpLoad3} {
		if counts[op] != 1 {
			t.Errorf("%s emitted %d times, want 1", op, counts[op])
		}
	}
	// The fifth local (slot 4) uses the long forms.
	if counts[OpStore] != 1 || counts[OpLoad] != 1 {
		t.Errorf("long forms: store=%d load=%d, want 1 each", counts[OpStore], counts[OpLoad])
	}
	if got := file.MainCode().MaxLocals; got != 5 {
		t.Errorf("max_locals = %d, want 5", got)
	}
}

func TestEmitPoolMinimality(t *testing.T) {
	file := emitSource(t, `
		print 1; print 1; print 1;
		print "s"; print "s";
	`)
	// Pool: 1, "s" Utf8, "s" String, "Code", "SourceFile", "test.yk" — no
	// duplicates from the repeated literals.
	seen := map[string]bool{}
	for i, entry := range file.Pool.Entries() {
		k := entry.TypeName() + ":" + entry.String()
		if seen[k] {
			t.Errorf("duplicate pool entry #%d: %s", i+1, k)
		}
		seen[k] = true
	}
}

func TestEmitIfElse(t *testing.T) {
	file := emitSource(t, `
		var a = true;
		if a { print "y"; } else { print "n"; }
	`)
	checkJumpTargets(t, file.MainCode().Code)
}

func TestEmitLoops(t *testing.T) {
	sources := []string{
		`var i = 0; while i < 3 { print i; i = i + 1; }`,
		`for (var i = 0; i < 3; i = i + 1) { print i; }`,
		`outer: for (var i = 0; i < 3; i = i + 1) {
			for (var j = 0; j < 3; j = j + 1) {
				if i == 1 and j == 1 { break outer; }
				if j == 2 { continue; }
				print i;
			}
		}`,
		`var i = 0; for (;;) { if i == 2 { break; } i = i + 1; }`,
	}
	for _, source := range sources {
		file := emitSource(t, source)
		checkJumpTargets(t, file.MainCode().Code)
	}
}

func TestEmitComparisonZeroForms(t *testing.T) {
	c := compiler.NewCompiler()
	c.Features.ConstFolding = false
	program, hasErrors := c.Compile(`var a = 1; print a == 0; print a < 0; print a > 1;`)
	if hasErrors {
		t.Fatalf("compile errors: %v", c.Diagnostics.Diagnostics)
	}
	file, err := NewEmitter().Emit(program, "")
	if err != nil {
		t.Fatal(err)
	}
	code := file.MainCode().Code

	counts := map[Opcode]int{}
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		counts[op]++
		offset += op.InstructionLen()
	}
	if counts[OpIfEqz] != 1 {
		t.Errorf("ifeqz emitted %d times, want 1", counts[OpIfEqz])
	}
	if counts[OpIfLtz] != 1 {
		t.Errorf("ifltz emitted %d times, want 1", counts[OpIfLtz])
	}
	// Comparison against a non-zero literal uses the two-operand form.
	if counts[OpIfGt] != 1 {
		t.Errorf("ifgt emitted %d times, want 1", counts[OpIfGt])
	}
}

func TestEmitFunctionsGetOwnCodeAttributes(t *testing.T) {
	file := emitSource(t, `
		fun add(a, b) { return a + b; }
		fun greet() { print "hi"; return; }
		print 1;
	`)
	var codes []*CodeAttr
	for _, attr := range file.Attributes {
		if attr.Code != nil {
			codes = append(codes, attr.Code)
		}
	}
	if len(codes) != 3 {
		t.Fatalf("Code attributes = %d, want 3 (program + 2 functions)", len(codes))
	}
	// The program's code comes first.
	if codes[0] != file.MainCode() {
		t.Error("MainCode is not the first Code attribute")
	}
	if codes[1].MaxLocals != 2 {
		t.Errorf("add max_locals = %d, want 2", codes[1].MaxLocals)
	}
	// Every region ends with halt.
	for i, code := range codes {
		if code.Code[len(code.Code)-1] != byte(OpHalt) {
			t.Errorf("region %d does not end with halt", i)
		}
	}
}

func TestEmitDeterministic(t *testing.T) {
	source := `
		var i = 0;
		outer: while i < 10 {
			if i == 5 { break outer; }
			print "v" + "x";
			i = i + 1;
		}
	`
	first, err := emitSource(t, source).Serialize()
	if err != nil {
		t.Fatal(err)
	}
	second, err := emitSource(t, source).Serialize()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("independent compilations are not byte-identical")
	}
}

func TestEmitSourceFileAttribute(t *testing.T) {
	file := emitSource(t, "print 1;")
	source, ok := file.SourceFile()
	if !ok || source != "test.yk" {
		t.Errorf("source file = %q, %v", source, ok)
	}
}

func TestEmitDebugInfo(t *testing.T) {
	c := compiler.NewCompiler()
	program, hasErrors := c.Compile("var a = 1;\nprint a;\n")
	if hasErrors {
		t.Fatal("unexpected compile errors")
	}
	e := NewEmitter()
	e.CollectDebug = true
	if _, err := e.Emit(program, "dbg.yk"); err != nil {
		t.Fatal(err)
	}
	if e.Debug == nil || len(e.Debug.Regions) != 1 {
		t.Fatalf("debug regions = %v", e.Debug)
	}
	sm := e.Debug.Regions[0].SourceMap
	if len(sm) != 2 {
		t.Fatalf("source map entries = %d, want 2", len(sm))
	}
	if sm[0].Line != 1 || sm[1].Line != 2 {
		t.Errorf("source map lines = %d, %d, want 1, 2", sm[0].Line, sm[1].Line)
	}
	if sm[0].Offset != 0 {
		t.Errorf("first mapping offset = %d, want 0", sm[0].Offset)
	}
}

func TestEmitUnaryLowering(t *testing.T) {
	// With folding off, -x and !x lower to the documented sequences.
	c := compiler.NewCompiler()
	c.Features.ConstFolding = false
	program, hasErrors := c.Compile("var x = 1; print -x; print !x;")
	if hasErrors {
		t.Fatal("unexpected compile errors")
	}
	file, err := NewEmitter().Emit(program, "")
	if err != nil {
		t.Fatal(err)
	}
	code := file.MainCode().Code
	checkJumpTargets(t, code)

	counts := map[Opcode]int{}
	offset := 0
	for offset < len(code) {
		op := Opcode(code[offset])
		counts[op]++
		offset += op.InstructionLen()
	}
	if counts[OpSub] != 1 {
		t.Errorf("sub emitted %d times, want 1 (for negation)", counts[OpSub])
	}
	if counts[OpBPush0] != 1 || counts[OpBPush1] != 1 {
		t.Errorf("bpush_0=%d bpush_1=%d, want 1 each (for logical not)",
			counts[OpBPush0], counts[OpBPush1])
	}
	if got := file.MainCode().MaxStack; got != 2 {
		t.Errorf("max_stack = %d, want 2", got)
	}
}
