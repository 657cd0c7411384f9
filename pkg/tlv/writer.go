package tlv

import (
	"encoding/binary"
	"math"
)

// Writer encodes TLV elements into a fixed-capacity buffer.
//
// The capacity of the buffer passed to NewWriter is a hard limit: an element
// that does not fit fails with ErrBufferTooSmall and leaves the already
// encoded prefix untouched. The buffer is never reallocated.
type Writer struct {
	buf            []byte
	containerStack []ElementType
}

// NewWriter returns a Writer that encodes into buf[:cap(buf)].
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// NewSizedWriter returns a Writer backed by a fresh buffer of size octets.
func NewSizedWriter(size int) *Writer {
	return NewWriter(make([]byte, 0, size))
}

// reserve checks that n more octets fit.
func (w *Writer) reserve(n int) error {
	if len(w.buf)+n > cap(w.buf) {
		return ErrBufferTooSmall
	}
	return nil
}

func (w *Writer) putHeader(elemType ElementType, tag Tag, valueLen int) error {
	if err := w.reserve(1 + tag.Control().Size() + valueLen); err != nil {
		return err
	}
	w.buf = append(w.buf, BuildControlOctet(elemType, tag.Control()))
	w.buf = appendTag(w.buf, tag)
	return nil
}

// PutUint writes an unsigned integer using the narrowest encoding that
// holds v.
func (w *Writer) PutUint(tag Tag, v uint64) error {
	switch {
	case v <= math.MaxUint8:
		if err := w.putHeader(ElementTypeUInt8, tag, 1); err != nil {
			return err
		}
		w.buf = append(w.buf, byte(v))
	case v <= math.MaxUint16:
		if err := w.putHeader(ElementTypeUInt16, tag, 2); err != nil {
			return err
		}
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(v))
	case v <= math.MaxUint32:
		if err := w.putHeader(ElementTypeUInt32, tag, 4); err != nil {
			return err
		}
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
	default:
		if err := w.putHeader(ElementTypeUInt64, tag, 8); err != nil {
			return err
		}
		w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	}
	return nil
}

// StartStructure opens a structure.
func (w *Writer) StartStructure(tag Tag) error {
	if err := w.putHeader(ElementTypeStruct, tag, 0); err != nil {
		return err
	}
	w.containerStack = append(w.containerStack, ElementTypeStruct)
	return nil
}

// EndContainer closes the innermost open container.
func (w *Writer) EndContainer() error {
	if len(w.containerStack) == 0 {
		return ErrNotInContainer
	}
	if err := w.reserve(1); err != nil {
		return err
	}
	w.containerStack = w.containerStack[:len(w.containerStack)-1]
	w.buf = append(w.buf, byte(ElementTypeEnd))
	return nil
}

// Finish returns the encoding once every container has been closed.
func (w *Writer) Finish() ([]byte, error) {
	if len(w.containerStack) != 0 {
		return nil, ErrContainerNotClosed
	}
	return w.buf, nil
}
