// Package tlv implements the subset of Matter TLV (Tag-Length-Value)
// encoding used for persisted records.
//
// Records are small and bounded, so the Writer encodes into a caller-sized
// buffer and fails with ErrBufferTooSmall instead of growing, and the Reader
// decodes directly from a byte slice. Records hold unsigned integers in
// structures; any other well-formed element is skipped, which lets decoders
// ignore fields they do not know.
package tlv

// ElementType is the element type carried in the lower 5 bits of the
// control octet (Matter Core A.7.1).
type ElementType int

const (
	ElementTypeInt8    ElementType = 0x00
	ElementTypeInt16   ElementType = 0x01
	ElementTypeInt32   ElementType = 0x02
	ElementTypeInt64   ElementType = 0x03
	ElementTypeUInt8   ElementType = 0x04
	ElementTypeUInt16  ElementType = 0x05
	ElementTypeUInt32  ElementType = 0x06
	ElementTypeUInt64  ElementType = 0x07
	ElementTypeFalse   ElementType = 0x08
	ElementTypeTrue    ElementType = 0x09
	ElementTypeFloat32 ElementType = 0x0A
	ElementTypeFloat64 ElementType = 0x0B
	ElementTypeUTF8_1  ElementType = 0x0C
	ElementTypeUTF8_2  ElementType = 0x0D
	ElementTypeUTF8_4  ElementType = 0x0E
	ElementTypeUTF8_8  ElementType = 0x0F
	ElementTypeBytes1  ElementType = 0x10
	ElementTypeBytes2  ElementType = 0x11
	ElementTypeBytes4  ElementType = 0x12
	ElementTypeBytes8  ElementType = 0x13
	ElementTypeNull    ElementType = 0x14
	ElementTypeStruct  ElementType = 0x15
	ElementTypeArray   ElementType = 0x16
	ElementTypeList    ElementType = 0x17
	ElementTypeEnd     ElementType = 0x18
)

var elementTypeNames = [...]string{
	"Int8", "Int16", "Int32", "Int64",
	"UInt8", "UInt16", "UInt32", "UInt64",
	"False", "True", "Float32", "Float64",
	"UTF8_1", "UTF8_2", "UTF8_4", "UTF8_8",
	"Bytes1", "Bytes2", "Bytes4", "Bytes8",
	"Null", "Structure", "Array", "List", "EndOfContainer",
}

// String returns the name of the element type.
func (e ElementType) String() string {
	if e < 0 || int(e) >= len(elementTypeNames) {
		return "Unknown"
	}
	return elementTypeNames[e]
}

// IsValid reports whether e is a defined element type.
func (e ElementType) IsValid() bool {
	return e >= ElementTypeInt8 && e <= ElementTypeEnd
}

// IsUnsignedInt reports whether e is an unsigned integer type.
func (e ElementType) IsUnsignedInt() bool {
	return e >= ElementTypeUInt8 && e <= ElementTypeUInt64
}

// IsString reports whether e is a UTF-8 or octet string type.
func (e ElementType) IsString() bool {
	return e >= ElementTypeUTF8_1 && e <= ElementTypeBytes8
}

// IsContainer reports whether e opens a structure, array, or list.
func (e ElementType) IsContainer() bool {
	return e == ElementTypeStruct || e == ElementTypeArray || e == ElementTypeList
}

// ValueSize returns the width of the value field of fixed-size types,
// and 0 for everything else.
func (e ElementType) ValueSize() int {
	switch {
	case e >= ElementTypeInt8 && e <= ElementTypeUInt64:
		return 1 << (int(e) & 0x03)
	case e == ElementTypeFloat32:
		return 4
	case e == ElementTypeFloat64:
		return 8
	}
	return 0
}

// LengthFieldSize returns the width of the length prefix of string types,
// and 0 for everything else.
func (e ElementType) LengthFieldSize() int {
	if !e.IsString() {
		return 0
	}
	return 1 << (int(e) & 0x03)
}

const (
	elementTypeMask = 0x1F
	tagControlShift = 5
)

// ParseControlOctet splits a control octet into element type and tag control.
func ParseControlOctet(b byte) (ElementType, TagControl) {
	return ElementType(b & elementTypeMask), TagControl(b >> tagControlShift)
}

// BuildControlOctet combines an element type and a tag control.
func BuildControlOctet(elemType ElementType, tagCtrl TagControl) byte {
	return byte(elemType&elementTypeMask) | byte(tagCtrl<<tagControlShift)
}

// ContextFieldOverhead is the control octet plus a one-octet context tag.
const ContextFieldOverhead = 2

// StructSize returns the exact encoded size of an anonymous structure whose
// members are context-tagged fixed-width fields of the given value sizes.
// Passing the widest possible value for each member yields the buffer size
// needed to encode any instance of the structure.
func StructSize(valueSizes ...int) int {
	n := 2 // start control octet + end-of-container
	for _, s := range valueSizes {
		n += ContextFieldOverhead + s
	}
	return n
}
