package tlv

import "errors"

var (
	// ErrUnexpectedEOF is returned when the input ends inside an element.
	ErrUnexpectedEOF = errors.New("tlv: unexpected end of input")

	// ErrInvalidElementType is returned for reserved element types.
	ErrInvalidElementType = errors.New("tlv: invalid element type")

	// ErrTypeMismatch is returned when a value is read as the wrong type.
	ErrTypeMismatch = errors.New("tlv: type mismatch")

	// ErrNotInContainer is returned when exiting or ending a container that is not open.
	ErrNotInContainer = errors.New("tlv: not in container")

	// ErrContainerNotClosed is returned by Finish while containers are still open.
	ErrContainerNotClosed = errors.New("tlv: container not closed")

	// ErrNoElement is returned when accessing an element before calling Next.
	ErrNoElement = errors.New("tlv: no current element")

	// ErrValueAlreadyRead is returned when the same value is read twice.
	ErrValueAlreadyRead = errors.New("tlv: value already read")

	// ErrBufferTooSmall is returned when an encoding does not fit the
	// writer's fixed buffer. Nothing is truncated.
	ErrBufferTooSmall = errors.New("tlv: buffer too small")
)
