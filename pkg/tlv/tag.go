package tlv

import (
	"encoding/binary"
	"fmt"
)

// TagControl is the tag form carried in the upper 3 bits of the control
// octet (Matter Core A.7.2).
type TagControl int

const (
	TagControlAnonymous        TagControl = 0
	TagControlContext          TagControl = 1
	TagControlCommonProfile2   TagControl = 2
	TagControlCommonProfile4   TagControl = 3
	TagControlImplicitProfile2 TagControl = 4
	TagControlImplicitProfile4 TagControl = 5
	TagControlFullyQualified6  TagControl = 6
	TagControlFullyQualified8  TagControl = 7
)

var tagControlSizes = [...]int{0, 1, 2, 4, 2, 4, 6, 8}

// Size returns the number of octets the tag occupies after the control octet.
func (tc TagControl) Size() int {
	if tc < 0 || int(tc) >= len(tagControlSizes) {
		return 0
	}
	return tagControlSizes[tc]
}

// Tag is a TLV tag. Records only use anonymous and context tags; profile
// tags are decoded so that foreign elements can be skipped.
type Tag struct {
	control       TagControl
	vendorID      uint16
	profileNumber uint16
	number        uint32
}

// Anonymous returns the anonymous tag.
func Anonymous() Tag {
	return Tag{control: TagControlAnonymous}
}

// ContextTag returns a context-specific tag.
func ContextTag(n uint8) Tag {
	return Tag{control: TagControlContext, number: uint32(n)}
}

// Control returns the tag form.
func (t Tag) Control() TagControl { return t.control }

// IsAnonymous reports whether t is the anonymous tag.
func (t Tag) IsAnonymous() bool { return t.control == TagControlAnonymous }

// IsContext reports whether t is a context-specific tag.
func (t Tag) IsContext() bool { return t.control == TagControlContext }

// Number returns the tag number.
func (t Tag) Number() uint32 { return t.number }

// Is reports whether t is the context tag n.
func (t Tag) Is(n uint8) bool {
	return t.control == TagControlContext && t.number == uint32(n)
}

func (t Tag) String() string {
	switch t.control {
	case TagControlAnonymous:
		return "Anonymous"
	case TagControlContext:
		return fmt.Sprintf("Context(%d)", t.number)
	case TagControlFullyQualified6, TagControlFullyQualified8:
		return fmt.Sprintf("FullyQualified(0x%04X:0x%04X:%d)", t.vendorID, t.profileNumber, t.number)
	default:
		return fmt.Sprintf("Profile(%d)", t.number)
	}
}

// appendTag appends the tag octets (little-endian, Matter Core A.8) to dst.
func appendTag(dst []byte, t Tag) []byte {
	switch t.control {
	case TagControlContext:
		return append(dst, byte(t.number))
	case TagControlCommonProfile2, TagControlImplicitProfile2:
		return binary.LittleEndian.AppendUint16(dst, uint16(t.number))
	case TagControlCommonProfile4, TagControlImplicitProfile4:
		return binary.LittleEndian.AppendUint32(dst, t.number)
	case TagControlFullyQualified6:
		dst = binary.LittleEndian.AppendUint16(dst, t.vendorID)
		dst = binary.LittleEndian.AppendUint16(dst, t.profileNumber)
		return binary.LittleEndian.AppendUint16(dst, uint16(t.number))
	case TagControlFullyQualified8:
		dst = binary.LittleEndian.AppendUint16(dst, t.vendorID)
		dst = binary.LittleEndian.AppendUint16(dst, t.profileNumber)
		return binary.LittleEndian.AppendUint32(dst, t.number)
	}
	return dst
}

// parseTag decodes a tag of form ctrl from the start of b. b must hold at
// least ctrl.Size() octets.
func parseTag(b []byte, ctrl TagControl) Tag {
	t := Tag{control: ctrl}
	switch ctrl {
	case TagControlContext:
		t.number = uint32(b[0])
	case TagControlCommonProfile2, TagControlImplicitProfile2:
		t.number = uint32(binary.LittleEndian.Uint16(b))
	case TagControlCommonProfile4, TagControlImplicitProfile4:
		t.number = binary.LittleEndian.Uint32(b)
	case TagControlFullyQualified6:
		t.vendorID = binary.LittleEndian.Uint16(b[0:])
		t.profileNumber = binary.LittleEndian.Uint16(b[2:])
		t.number = uint32(binary.LittleEndian.Uint16(b[4:]))
	case TagControlFullyQualified8:
		t.vendorID = binary.LittleEndian.Uint16(b[0:])
		t.profileNumber = binary.LittleEndian.Uint16(b[2:])
		t.number = binary.LittleEndian.Uint32(b[4:])
	}
	return t
}
