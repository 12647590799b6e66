package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ---------------------------------------------------------------------------
// YKB reader: validating decoder for the on-disk format
// ---------------------------------------------------------------------------

// MalformedFileError reports a structural violation in a YKB file along
// with the byte offset where it was detected.
type MalformedFileError struct {
	Reason string
	Offset int64
}

func (e *MalformedFileError) Error() string {
	return fmt.Sprintf("malformed bytecode file: %s (offset %d)", e.Reason, e.Offset)
}

func malformed(offset int, reason string, args ...any) error {
	return &MalformedFileError{Reason: fmt.Sprintf(reason, args...), Offset: int64(offset)}
}

// reader decodes the byte stream with bounds checking.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return malformed(r.pos, "unexpected end of file reading %s", what)
	}
	return nil
}

func (r *reader) u8(what string) (byte, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) bytes(n int, what string) ([]byte, error) {
	if err := r.need(n, what); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v, nil
}

// Deserialize decodes and validates a YKB file. Any violation fails with a
// *MalformedFileError carrying the reason and offset.
func Deserialize(data []byte) (*File, error) {
	r := &reader{data: data}

	magic, err := r.u32("magic")
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, malformed(0, "magic")
	}

	versionOffset := r.pos
	major, err := r.u16("major version")
	if err != nil {
		return nil, err
	}
	minor, err := r.u16("minor version")
	if err != nil {
		return nil, err
	}
	version := Version{Major: major, Minor: minor}
	if !version.Compatible() {
		return nil, malformed(versionOffset, "unsupported version %d.%d", major, minor)
	}

	file := &File{Version: version, Pool: NewConstantPool()}
	if err := readPool(r, file.Pool); err != nil {
		return nil, err
	}
	if err := readAttributes(r, file); err != nil {
		return nil, err
	}
	if r.pos != len(r.data) {
		return nil, malformed(r.pos, "trailing bytes after attributes")
	}
	return file, nil
}

// ReadFile loads and decodes a YKB file from disk.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}

func readPool(r *reader, pool *ConstantPool) error {
	count, err := r.u16("constant pool count")
	if err != nil {
		return err
	}
	if count == 0 {
		return malformed(r.pos-2, "constant pool count must be at least 1")
	}

	type pending struct {
		offset int
		index  uint16
	}
	var stringRefs []pending

	for i := uint16(1); i < count; i++ {
		tagOffset := r.pos
		tag, err := r.u8("constant tag")
		if err != nil {
			return err
		}
		switch tag {
		case TagUtf8:
			n, err := r.u16("Utf8 length")
			if err != nil {
				return err
			}
			bytes, err := r.bytes(int(n), "Utf8 bytes")
			if err != nil {
				return err
			}
			pool.entries = append(pool.entries, Entry{Kind: EntryUtf8, Bytes: bytes})

		case TagNumber:
			high, err := r.u32("Number high bytes")
			if err != nil {
				return err
			}
			low, err := r.u32("Number low bytes")
			if err != nil {
				return err
			}
			pool.entries = append(pool.entries, Entry{
				Kind: EntryNumber,
				Num:  f64FromHalves(high, low),
			})

		case TagString:
			indexOffset := r.pos
			index, err := r.u16("String index")
			if err != nil {
				return err
			}
			stringRefs = append(stringRefs, pending{offset: indexOffset, index: index})
			pool.entries = append(pool.entries, Entry{Kind: EntryString, Index: index})

		default:
			return malformed(tagOffset, "unknown constant tag 0x%02X", tag)
		}
	}

	// String targets may reference entries later in the pool; validate once
	// the whole pool is decoded.
	for _, ref := range stringRefs {
		target, ok := pool.Get(ref.index)
		if !ok {
			return malformed(ref.offset, "String index %d out of range", ref.index)
		}
		if target.Kind != EntryUtf8 {
			return malformed(ref.offset, "String index %d does not reference a Utf8 entry", ref.index)
		}
	}

	// Rebuild the deduplication index so the pool can be extended.
	for i, entry := range pool.entries {
		pool.indices[entry.key()] = uint16(i + 1)
	}
	return nil
}

func readAttributes(r *reader, file *File) error {
	count, err := r.u16("attribute count")
	if err != nil {
		return err
	}

	for i := uint16(0); i < count; i++ {
		nameOffset := r.pos
		nameIndex, err := r.u16("attribute name index")
		if err != nil {
			return err
		}
		length, err := r.u32("attribute length")
		if err != nil {
			return err
		}

		nameEntry, ok := file.Pool.Get(nameIndex)
		if !ok || nameEntry.Kind != EntryUtf8 {
			return malformed(nameOffset, "attribute name index %d does not reference a Utf8 entry", nameIndex)
		}

		payloadStart := r.pos
		attr := Attribute{NameIndex: nameIndex}

		switch string(nameEntry.Bytes) {
		case AttrCode:
			maxStack, err := r.u16("Code max_stack")
			if err != nil {
				return err
			}
			maxLocals, err := r.u16("Code max_locals")
			if err != nil {
				return err
			}
			codeLength, err := r.u32("Code code_length")
			if err != nil {
				return err
			}
			code, err := r.bytes(int(codeLength), "Code bytes")
			if err != nil {
				return err
			}
			attr.Code = &CodeAttr{MaxStack: maxStack, MaxLocals: maxLocals, Code: code}

		case AttrSourceFile:
			index, err := r.u16("SourceFile index")
			if err != nil {
				return err
			}
			target, ok := file.Pool.Get(index)
			if !ok || target.Kind != EntryUtf8 {
				return malformed(payloadStart, "SourceFile index %d does not reference a Utf8 entry", index)
			}
			attr.SourceFile = &SourceFileAttr{SourceFileIndex: index}

		default:
			return malformed(nameOffset, "unknown attribute %q", string(nameEntry.Bytes))
		}

		if consumed := r.pos - payloadStart; consumed != int(length) {
			return malformed(payloadStart, "attribute length mismatch: declared %d, consumed %d", length, consumed)
		}
		file.Attributes = append(file.Attributes, attr)
	}
	return nil
}

// f64FromHalves reassembles a float64 from its high and low 32-bit halves.
func f64FromHalves(high, low uint32) float64 {
	return math.Float64frombits(uint64(high)<<32 | uint64(low))
}
