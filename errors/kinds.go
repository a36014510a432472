package errors

import "fmt"

// Kind is the closed set of caller-facing error kinds. These are
// returned synchronously to the control API and never retried by the core.
type Kind string

const (
	KindUnknownRadar   Kind = "UnknownRadar"
	KindUnknownControl Kind = "UnknownControl"
	KindInvalidValue   Kind = "InvalidValue"
	KindDisabled       Kind = "Disabled"
	KindNotSupported   Kind = "NotSupported"
	KindTimeout        Kind = "Timeout"
	KindUnavailable    Kind = "Unavailable"
	KindInternal       Kind = "Internal"
)

// APIError is the error type returned from every Registry/ControlRouter
// operation that can fail for a caller-visible reason. It carries enough
// detail to translate directly into an HTTP response in an external layer.
type APIError struct {
	Kind   Kind
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// New constructs an APIError of the given kind.
func New(kind Kind, detail string) *APIError {
	return &APIError{Kind: kind, Detail: detail}
}

// Newf constructs an APIError with a formatted detail message.
func Newf(kind Kind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// that are not an *APIError.
func KindOf(err error) Kind {
	var ae *APIError
	if As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// As is a thin re-export of errors.As specialised for *APIError so callers
// in this package don't need a second import alias.
func As(err error, target **APIError) bool {
	for err != nil {
		if ae, ok := err.(*APIError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
