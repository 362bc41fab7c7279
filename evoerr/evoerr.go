// Package evoerr defines the typed error taxonomy shared by every
// evoswarm package: transport failures, disk I/O, serialization, and
// the two strategy-tag parsing failures (unknown name, out-of-range
// integer).
package evoerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can branch without string matching.
type Kind int

const (
	KindTransport Kind = iota
	KindIO
	KindSerialization
	KindParseEnum
	KindConvertEnum
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindIO:
		return "io"
	case KindSerialization:
		return "serialization"
	case KindParseEnum:
		return "parse_enum"
	case KindConvertEnum:
		return "convert_enum"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by evoswarm operations.
// It always carries a Kind and, for the parse/convert kinds, enough
// context to reproduce a useful message.
type Error struct {
	Kind  Kind
	cause error
	field string // enum name or source context, kind-dependent
	tag   int    // integer tag, for ConvertEnum
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindParseEnum:
		return fmt.Sprintf("evoswarm: could not parse %s %q", e.field, e.cause.Error())
	case KindConvertEnum:
		return fmt.Sprintf("evoswarm: could not convert integer %d to %s", e.tag, e.field)
	default:
		return fmt.Sprintf("evoswarm: %s: %s", e.Kind, e.cause.Error())
	}
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Cause() error { return errors.Cause(e.cause) }

// Transport wraps err as a TransportError.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransport, cause: errors.Wrap(err, "transport")}
}

// IO wraps err as an IoError.
func IO(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindIO, cause: errors.Wrap(err, "io")}
}

// Serialization wraps err as a SerializationError.
func Serialization(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindSerialization, cause: errors.Wrap(err, "serialization")}
}

// ParseEnum builds a ParseEnumError for an unrecognized strategy tag.
func ParseEnum(enumName, got string) error {
	return &Error{Kind: KindParseEnum, field: enumName, cause: errors.Errorf("%s", got)}
}

// ConvertEnum builds a ConvertEnumError for an out-of-range integer tag.
func ConvertEnum(enumName string, tag int) error {
	return &Error{Kind: KindConvertEnum, field: enumName, tag: tag, cause: errors.Errorf("out of range")}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
