package bytecode

// ---------------------------------------------------------------------------
// Bytecode file model
// ---------------------------------------------------------------------------

// Magic identifies a YKB bytecode file ("YuKr").
const Magic uint32 = 0x59754B72

// Current bytecode format version. Readers accept any file that shares the
// major version.
const (
	MajorVersion uint16 = 0
	MinorVersion uint16 = 1
)

// Bytecode file extension.
const ExtYKB = "ykb"

// Attribute names recognized in a YKB file.
const (
	AttrCode       = "Code"
	AttrSourceFile = "SourceFile"
)

// Version is a YKB format version.
type Version struct {
	Major uint16
	Minor uint16
}

// Compatible reports whether a file with this version can be loaded by the
// current implementation.
func (v Version) Compatible() bool {
	return v.Major == MajorVersion
}

// CodeAttr is a region of bytecode plus its stack and locals budget.
type CodeAttr struct {
	MaxStack  uint16
	MaxLocals uint16
	Code      []byte
}

// SourceFileAttr records the pool index of the Utf8 entry holding the
// source file name.
type SourceFileAttr struct {
	SourceFileIndex uint16
}

// Attribute is a named attribute in a YKB file. Exactly one of Code and
// SourceFile is set, matching the name the NameIndex resolves to.
type Attribute struct {
	NameIndex  uint16
	Code       *CodeAttr
	SourceFile *SourceFileAttr
}

// File is an in-memory YKB bytecode file.
type File struct {
	Version    Version
	Pool       *ConstantPool
	Attributes []Attribute
}

// NewFile creates an empty file at the current format version.
func NewFile() *File {
	return &File{
		Version: Version{Major: MajorVersion, Minor: MinorVersion},
		Pool:    NewConstantPool(),
	}
}

// MainCode returns the top-level Code attribute: the first Code attribute
// in file order.
func (f *File) MainCode() *CodeAttr {
	for _, attr := range f.Attributes {
		if attr.Code != nil {
			return attr.Code
		}
	}
	return nil
}

// SourceFile returns the source file name recorded in the file, if any.
func (f *File) SourceFile() (string, bool) {
	for _, attr := range f.Attributes {
		if attr.SourceFile != nil {
			entry, ok := f.Pool.Get(attr.SourceFile.SourceFileIndex)
			if !ok || entry.Kind != EntryUtf8 {
				return "", false
			}
			return string(entry.Bytes), true
		}
	}
	return "", false
}
