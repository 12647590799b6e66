// Package bytecode defines the YKB bytecode format and the tools that
// produce and consume it.
//
// The format is designed for:
//   - Compact representation (most instructions are 1 or 3 bytes)
//   - Fast decoding (fixed-width opcodes, big-endian u16 operands)
//   - Deterministic output (compiling the same source twice yields
//     byte-identical files)
//
// # Architecture Overview
//
//   - Opcodes: a small stack-machine instruction set covering constants,
//     locals, arithmetic, comparisons, and control flow
//
//   - ConstantPool: a 1-indexed, structurally deduplicated table of Utf8,
//     Number, and String entries referenced by ldc and by attribute names
//
//   - File: the in-memory model of a .ykb file — version, constant pool,
//     and attributes. A Code attribute carries a region of instructions
//     plus its max_stack/max_locals budget; a SourceFile attribute names
//     the source the file was compiled from
//
//   - Emitter: translates an attributed AST into a File, back-patching
//     forward jumps and tracking operand-stack depth as it goes
//
//   - Serialize/Deserialize: the bit-exact on-disk codec. The reader
//     validates magic, version, pool indices, and attribute framing, and
//     reports violations with the offending byte offset
//
//   - Disassemble: renders a loaded file as a human-readable listing
//
// Debug information (a source map per code region) never lives inside the
// .ykb file; it is serialized as a canonical-CBOR .ykd sidecar.
package bytecode
