package bytecode

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Debug info sidecar (.ykd)
// ---------------------------------------------------------------------------

// Debug info file extension. The sidecar sits next to its .ykb file; the
// bytecode format itself never carries debug data.
const ExtYKD = "ykd"

// SourceLoc maps a code offset to a source location.
type SourceLoc struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   uint32 `cbor:"2,keyasint"`
	Column uint32 `cbor:"3,keyasint"`
}

// RegionDebug holds the source map for one Code attribute, in the order the
// attributes appear in the file.
type RegionDebug struct {
	SourceMap []SourceLoc `cbor:"1,keyasint"`
}

// DebugInfo is the sidecar payload.
type DebugInfo struct {
	Regions []RegionDebug `cbor:"1,keyasint"`
}

// Canonical encoding keeps sidecar output deterministic across runs.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborEncMode = em
}

// Marshal encodes the debug info in canonical CBOR.
func (d *DebugInfo) Marshal() ([]byte, error) {
	return cborEncMode.Marshal(d)
}

// UnmarshalDebugInfo decodes a sidecar payload.
func UnmarshalDebugInfo(data []byte) (*DebugInfo, error) {
	var d DebugInfo
	if err := cbor.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding debug info: %w", err)
	}
	return &d, nil
}

// WriteFile encodes the debug info and writes it to path.
func (d *DebugInfo) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadDebugFile loads a sidecar from disk.
func ReadDebugFile(path string) (*DebugInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalDebugInfo(data)
}

// Location returns the nearest source location at or before offset within
// the given region, if the map has one.
func (d *DebugInfo) Location(region int, offset uint32) (SourceLoc, bool) {
	if d == nil || region < 0 || region >= len(d.Regions) {
		return SourceLoc{}, false
	}
	sm := d.Regions[region].SourceMap
	for i := len(sm) - 1; i >= 0; i-- {
		if sm[i].Offset <= offset {
			return sm[i], true
		}
	}
	return SourceLoc{}, false
}
