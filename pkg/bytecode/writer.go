package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// ---------------------------------------------------------------------------
// YKB writer: bit-exact serialization of the file model
// ---------------------------------------------------------------------------

// Serialize encodes the file to its on-disk representation. All multi-byte
// integers are big-endian. The encoding is deterministic: equal file
// structures produce identical bytes.
//
// Layout:
//
//	u4 magic  u2 major  u2 minor
//	u2 constant_pool_count            // entries + 1
//	cp_info[count-1]
//	u2 attribute_count
//	attribute_info[attribute_count]
func (f *File) Serialize() ([]byte, error) {
	if f.Pool.Count() >= math.MaxUint16 {
		return nil, fmt.Errorf("constant pool too large: %d entries", f.Pool.Count())
	}
	if len(f.Attributes) > math.MaxUint16 {
		return nil, fmt.Errorf("too many attributes: %d", len(f.Attributes))
	}

	buf := make([]byte, 0, 64)
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint16(buf, f.Version.Major)
	buf = binary.BigEndian.AppendUint16(buf, f.Version.Minor)

	// Pool count is the real entry count + 1; index 0 is reserved.
	buf = binary.BigEndian.AppendUint16(buf, uint16(f.Pool.Count()+1))
	for _, entry := range f.Pool.Entries() {
		var err error
		buf, err = appendEntry(buf, entry)
		if err != nil {
			return nil, err
		}
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(f.Attributes)))
	for _, attr := range f.Attributes {
		var err error
		buf, err = appendAttribute(buf, attr)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// WriteFile serializes the file and writes it to path.
func (f *File) WriteFile(path string) error {
	data, err := f.Serialize()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func appendEntry(buf []byte, entry Entry) ([]byte, error) {
	buf = append(buf, entry.Tag())
	switch entry.Kind {
	case EntryUtf8:
		if len(entry.Bytes) > math.MaxUint16 {
			return nil, fmt.Errorf("Utf8 constant too long: %d bytes", len(entry.Bytes))
		}
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(entry.Bytes)))
		buf = append(buf, entry.Bytes...)

	case EntryNumber:
		bits := math.Float64bits(entry.Num)
		buf = binary.BigEndian.AppendUint32(buf, uint32(bits>>32))
		buf = binary.BigEndian.AppendUint32(buf, uint32(bits))

	case EntryString:
		buf = binary.BigEndian.AppendUint16(buf, entry.Index)
	}
	return buf, nil
}

func appendAttribute(buf []byte, attr Attribute) ([]byte, error) {
	payload, err := attributePayload(attr)
	if err != nil {
		return nil, err
	}
	buf = binary.BigEndian.AppendUint16(buf, attr.NameIndex)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf, nil
}

func attributePayload(attr Attribute) ([]byte, error) {
	switch {
	case attr.Code != nil:
		if len(attr.Code.Code) > math.MaxUint32-8 {
			return nil, fmt.Errorf("code too long: %d bytes", len(attr.Code.Code))
		}
		payload := make([]byte, 0, 8+len(attr.Code.Code))
		payload = binary.BigEndian.AppendUint16(payload, attr.Code.MaxStack)
		payload = binary.BigEndian.AppendUint16(payload, attr.Code.MaxLocals)
		payload = binary.BigEndian.AppendUint32(payload, uint32(len(attr.Code.Code)))
		payload = append(payload, attr.Code.Code...)
		return payload, nil

	case attr.SourceFile != nil:
		payload := make([]byte, 0, 2)
		payload = binary.BigEndian.AppendUint16(payload, attr.SourceFile.SourceFileIndex)
		return payload, nil
	}
	return nil, fmt.Errorf("attribute with name index %d has no payload", attr.NameIndex)
}
