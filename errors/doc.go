// Package errors provides mayara's two error vocabularies.
//
// The first is internal: ErrorClass (Transient/Invalid/Fatal) and
// ClassifiedError, used by listeners and sessions to decide whether a
// failure is retryable, bad input, or unrecoverable. Wrap/WrapTransient/
// WrapFatal/WrapInvalid attach "component.method: action failed: %w"
// context while preserving or setting the classification.
//
// The second is caller-facing: Kind, the closed set the control API
// (UnknownRadar, UnknownControl, InvalidValue, Disabled, NotSupported,
// Timeout, Unavailable, Internal) and APIError, the type returned from
// every Registry/ControlRouter operation that can fail for a reason the
// external API layer needs to render. KindOf extracts a Kind from any
// error, defaulting to KindInternal.
package errors
