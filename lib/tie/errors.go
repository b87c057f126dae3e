package tie

import "fmt"

// --------------------------------------------------------------------------
// Error codes
// --------------------------------------------------------------------------

// ErrorCode classifies tie and untie failures
type ErrorCode uint8

const (
	CodeConfig       ErrorCode = iota + 1 // backend kind or path missing or unknown
	CodeAlreadyTied                       // a binding is already active
	CodeStoreOpen                         // the engine could not be opened
	CodeParamCreate                       // the namespace rejected the name
	CodeNotTied                           // untie without an active binding
	CodeNameMismatch                      // untie with a name other than the bound one
	CodeStoreClose                        // the engine reported an error on close
)

func (c ErrorCode) String() string {
	switch c {
	case CodeConfig:
		return "ConfigError"
	case CodeAlreadyTied:
		return "AlreadyTiedError"
	case CodeStoreOpen:
		return "StoreOpenError"
	case CodeParamCreate:
		return "ParamCreateError"
	case CodeNotTied:
		return "NotTiedError"
	case CodeNameMismatch:
		return "NameMismatchError"
	case CodeStoreClose:
		return "StoreCloseError"
	default:
		return "UnknownError"
	}
}

// Sentinels for errors.Is, one per code
var (
	ErrConfig       = &Error{Code: CodeConfig}
	ErrAlreadyTied  = &Error{Code: CodeAlreadyTied}
	ErrStoreOpen    = &Error{Code: CodeStoreOpen}
	ErrParamCreate  = &Error{Code: CodeParamCreate}
	ErrNotTied      = &Error{Code: CodeNotTied}
	ErrNameMismatch = &Error{Code: CodeNameMismatch}
	ErrStoreClose   = &Error{Code: CodeStoreClose}
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by Binder.Tie and Binder.Untie.
// Path is set for CodeStoreOpen and CodeStoreClose, Err holds the underlying cause if any.
type Error struct {
	Code ErrorCode
	Msg  string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrStoreOpen) works
// for every StoreOpenError regardless of its path.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: cause}
}
