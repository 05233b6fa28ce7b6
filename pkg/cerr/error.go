package cerr

import (
	"errors"
	"fmt"
	"runtime"
)

// Error carries a classification code alongside the user-facing message and
// the underlying error kept for logs.
type Error struct {
	Code  Code
	Msg   string // returned to the caller together with the code
	Err   error  // underlying error, logged but not returned
	Stack string // stack trace, captured only for error-level codes
}

func NewError(code Code, msg string, underlying error) *Error {
	err := &Error{
		Code: code,
		Msg:  msg,
		Err:  underlying,
	}
	if code.LogsAsError() {
		stackTrace := make([]byte, 2048)
		n := runtime.Stack(stackTrace, false)
		err.Stack = string(stackTrace[0:n])
	}
	return err
}

func Errorf(code Code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), nil)
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("[%s] %s", e.Code.String(), e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code.String(), e.Msg, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the classification code from err, or Unknown when err is
// not a *Error.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return Unknown
}

// MessageOf extracts the user-facing message from err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Msg
	}
	return "unknown error"
}

func IsCode(err error, code Code) bool {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code == code
	}
	return false
}
