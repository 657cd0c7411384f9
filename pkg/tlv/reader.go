package tlv

import (
	"encoding/binary"
	"io"
)

// Reader decodes TLV elements from a byte slice.
//
// Next positions the reader on the following element at the current
// nesting level. A container that was not entered is skipped as a whole.
type Reader struct {
	buf            []byte
	pos            int
	containerStack []ElementType

	hasElement bool
	elemType   ElementType
	tag        Tag
	value      []byte
	valueRead  bool
}

// NewReader returns a Reader over b. The Reader does not copy b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// readHeader decodes the element at r.pos and advances past its control
// octet, tag and value (but not past a container's members).
func (r *Reader) readHeader() (ElementType, Tag, []byte, error) {
	if r.pos >= len(r.buf) {
		return 0, Tag{}, nil, io.EOF
	}
	elemType, tagCtrl := ParseControlOctet(r.buf[r.pos])
	if !elemType.IsValid() {
		return 0, Tag{}, nil, ErrInvalidElementType
	}
	p := r.pos + 1

	n := tagCtrl.Size()
	if p+n > len(r.buf) {
		return 0, Tag{}, nil, ErrUnexpectedEOF
	}
	tag := parseTag(r.buf[p:], tagCtrl)
	p += n

	var value []byte
	switch {
	case elemType.ValueSize() > 0:
		n = elemType.ValueSize()
		if p+n > len(r.buf) {
			return 0, Tag{}, nil, ErrUnexpectedEOF
		}
		value = r.buf[p : p+n]
		p += n
	case elemType.IsString():
		lenSize := elemType.LengthFieldSize()
		if p+lenSize > len(r.buf) {
			return 0, Tag{}, nil, ErrUnexpectedEOF
		}
		var length uint64
		switch lenSize {
		case 1:
			length = uint64(r.buf[p])
		case 2:
			length = uint64(binary.LittleEndian.Uint16(r.buf[p:]))
		case 4:
			length = uint64(binary.LittleEndian.Uint32(r.buf[p:]))
		case 8:
			length = binary.LittleEndian.Uint64(r.buf[p:])
		}
		p += lenSize
		if length > uint64(len(r.buf)-p) {
			return 0, Tag{}, nil, ErrUnexpectedEOF
		}
		value = r.buf[p : p+int(length)]
		p += int(length)
	}

	r.pos = p
	return elemType, tag, value, nil
}

// skipMembers advances past the members of a container whose start
// element has already been consumed, including its end-of-container.
func (r *Reader) skipMembers() error {
	depth := 1
	for depth > 0 {
		elemType, _, _, err := r.readHeader()
		if err == io.EOF {
			return ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		switch {
		case elemType.IsContainer():
			depth++
		case elemType == ElementTypeEnd:
			depth--
		}
	}
	return nil
}

// Next advances to the next element. It returns io.EOF at the end of
// top-level input and ErrUnexpectedEOF when input ends inside a container.
func (r *Reader) Next() error {
	if r.hasElement && r.elemType.IsContainer() && !r.valueRead {
		if err := r.skipMembers(); err != nil {
			return err
		}
	}
	r.hasElement = false

	elemType, tag, value, err := r.readHeader()
	if err == io.EOF && len(r.containerStack) > 0 {
		return ErrUnexpectedEOF
	}
	if err != nil {
		return err
	}
	if elemType == ElementTypeEnd && len(r.containerStack) == 0 {
		return ErrNotInContainer
	}

	r.hasElement = true
	r.elemType = elemType
	r.tag = tag
	r.value = value
	r.valueRead = false
	return nil
}

// Type returns the type of the current element.
func (r *Reader) Type() ElementType { return r.elemType }

// Tag returns the tag of the current element.
func (r *Reader) Tag() Tag { return r.tag }

func (r *Reader) consume(ok bool) error {
	if !r.hasElement {
		return ErrNoElement
	}
	if r.valueRead {
		return ErrValueAlreadyRead
	}
	if !ok {
		return ErrTypeMismatch
	}
	r.valueRead = true
	return nil
}

// Uint returns the current unsigned integer, whatever its encoded width.
func (r *Reader) Uint() (uint64, error) {
	if err := r.consume(r.elemType.IsUnsignedInt()); err != nil {
		return 0, err
	}
	switch len(r.value) {
	case 1:
		return uint64(r.value[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(r.value)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(r.value)), nil
	default:
		return binary.LittleEndian.Uint64(r.value), nil
	}
}

// EnterContainer descends into the current container element.
func (r *Reader) EnterContainer() error {
	if err := r.consume(r.elemType.IsContainer()); err != nil {
		return err
	}
	r.containerStack = append(r.containerStack, r.elemType)
	r.hasElement = false
	return nil
}

// ExitContainer leaves the innermost entered container, skipping any
// members that were not read.
func (r *Reader) ExitContainer() error {
	if len(r.containerStack) == 0 {
		return ErrNotInContainer
	}
	for !(r.hasElement && r.elemType == ElementTypeEnd) {
		if err := r.Next(); err != nil {
			return err
		}
	}
	r.containerStack = r.containerStack[:len(r.containerStack)-1]
	r.hasElement = false
	return nil
}

// IsEndOfContainer reports whether the current element closes a container.
func (r *Reader) IsEndOfContainer() bool {
	return r.hasElement && r.elemType == ElementTypeEnd
}
