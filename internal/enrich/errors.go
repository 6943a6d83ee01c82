package enrich

import "errors"

// Kind classifies the errors a run can surface to its caller.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindAPI
	KindDataProcessing
)

// String returns the identifier used in structured error responses.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindAPI:
		return "api_error"
	case KindDataProcessing:
		return "data_processing_error"
	default:
		return "unexpected_error"
	}
}

// Error is implemented by every error kind a run returns on purpose.
type Error interface {
	error
	Kind() Kind
}

// KindOf returns the kind of the first Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

// ConfigurationError reports missing or invalid credentials. Never retried.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string { return joinMsg(e.Msg, e.Err) }
func (e *ConfigurationError) Unwrap() error { return e.Err }
func (e *ConfigurationError) Kind() Kind    { return KindConfiguration }

// APIError reports an authentication failure or a token rejected mid-run.
type APIError struct {
	Msg string
	Err error
}

func (e *APIError) Error() string { return joinMsg(e.Msg, e.Err) }
func (e *APIError) Unwrap() error { return e.Err }
func (e *APIError) Kind() Kind    { return KindAPI }

// DataProcessingError reports unreadable or malformed input, or any unclassified
// failure inside a run. Err keeps the original cause.
type DataProcessingError struct {
	Msg string
	Err error
}

func (e *DataProcessingError) Error() string { return joinMsg(e.Msg, e.Err) }
func (e *DataProcessingError) Unwrap() error { return e.Err }
func (e *DataProcessingError) Kind() Kind    { return KindDataProcessing }

func joinMsg(msg string, err error) string {
	if err == nil {
		return msg
	}
	if msg == "" {
		return err.Error()
	}
	return msg + ": " + err.Error()
}
