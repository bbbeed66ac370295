// Copyright 2022 The avcore Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package av

import (
	"errors"
)

// ErrorKind is the category of an Error.
type ErrorKind uint8

// Error kinds.
const (
	KindIO ErrorKind = iota + 1
	KindInvalidFormat
	KindInvalidCodec
	KindDecode
	KindEncode
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindInvalidFormat:
		return "invalid format"
	case KindInvalidCodec:
		return "invalid codec"
	case KindDecode:
		return "decode error"
	case KindEncode:
		return "encode error"
	case KindOther:
		return "error"
	}
	return "unknown error"
}

// Error is returned by every component. Err is the original cause and may be nil.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrDecode)
// is true for every decode error regardless of cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// Kind sentinels, use with errors.Is.
var (
	ErrIO            = &Error{Kind: KindIO}
	ErrInvalidFormat = &Error{Kind: KindInvalidFormat}
	ErrInvalidCodec  = &Error{Kind: KindInvalidCodec}
	ErrDecode        = &Error{Kind: KindDecode}
	ErrEncode        = &Error{Kind: KindEncode}
	ErrOther         = &Error{Kind: KindOther}
)

// Contract violations.
var (
	// ErrFlushed send was called after flush without a reset.
	ErrFlushed = errors.New("send after flush")

	// ErrFinalized muxer was already finalized.
	ErrFinalized = errors.New("muxer finalized")
)

// IOError wraps a transport error. Already classified errors are returned as is.
func IOError(err error) error { return wrap(KindIO, err) }

// FormatError wraps a malformed container error.
func FormatError(err error) error { return wrap(KindInvalidFormat, err) }

// CodecError wraps an unsupported or invalid codec error.
func CodecError(err error) error { return wrap(KindInvalidCodec, err) }

// DecodeError wraps a codec specific decode failure.
func DecodeError(err error) error { return wrap(KindDecode, err) }

// EncodeError wraps a codec specific encode failure.
func EncodeError(err error) error { return wrap(KindEncode, err) }

// WrapError wraps a collaborator defined failure.
func WrapError(err error) error { return wrap(KindOther, err) }

func wrap(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}
