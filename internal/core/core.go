package core

import (
	"errors"
	"fmt"
	"reflect"
)

// ProtocolError is an explicit error reply from the X server.
type ProtocolError struct {
	Op    string
	Name  string
	Code  byte
	Major byte
	Minor uint16
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s (code %d, major %d, minor %d)", e.Op, e.Name, e.Code, e.Major, e.Minor)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ConnectionError means the connection to the X server is gone.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return e.Op + ": connection closed"
	}
	return fmt.Sprintf("%s: connection closed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PreconditionError means something the program needs is missing: an
// extension, a protocol version, an output or a required option.
type PreconditionError struct {
	What string
}

func (e *PreconditionError) Error() string {
	return e.What
}

func Preconditionf(format string, args ...any) error {
	return &PreconditionError{What: fmt.Sprintf(format, args...)}
}

// Coder is implemented by errors that know their raw X error triple.
type Coder interface {
	ErrorCode() (code byte, major byte, minor uint16)
}

// NewProtocolError wraps err returned by request op. Opcodes are lifted from
// the xgb error value when it carries them.
func NewProtocolError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pe *ProtocolError
	if errors.As(err, &pe) {
		return err
	}

	perr := &ProtocolError{Op: op, Err: err}

	if c, ok := err.(Coder); ok {
		perr.Code, perr.Major, perr.Minor = c.ErrorCode()
	}

	v := reflect.ValueOf(err)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		if f := v.FieldByName("NiceName"); f.IsValid() && f.Kind() == reflect.String {
			perr.Name = f.String()
		}
		if f := v.FieldByName("MajorOpcode"); f.IsValid() && f.Kind() == reflect.Uint8 {
			perr.Major = byte(f.Uint())
		}
		if f := v.FieldByName("MinorOpcode"); f.IsValid() && f.Kind() == reflect.Uint16 {
			perr.Minor = uint16(f.Uint())
		}
	}

	return perr
}

func IsConnectionError(err error) bool {
	var cerr *ConnectionError
	return errors.As(err, &cerr)
}

func IsPreconditionError(err error) bool {
	var perr *PreconditionError
	return errors.As(err, &perr)
}
