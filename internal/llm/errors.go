package llm

import "errors"

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	// KindUnavailable means the inference service could not be reached or timed out.
	KindUnavailable ErrorKind = "unavailable"
	// KindMalformed means the response was empty or not parseable JSON.
	KindMalformed ErrorKind = "malformed"
	// KindDeclined means the service refused or found no registration document.
	KindDeclined ErrorKind = "declined"
	// KindInvalid means a field was missing or implausible.
	KindInvalid ErrorKind = "invalid"
)

// ExtractionError is returned by extractors. Message is the user-facing
// text; Err carries the underlying cause for logs.
type ExtractionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// IsExtractionError reports whether err is an ExtractionError of the given kind.
func IsExtractionError(err error, kind ErrorKind) bool {
	var e *ExtractionError
	return errors.As(err, &e) && e.Kind == kind
}

func unavailable(err error) *ExtractionError {
	return &ExtractionError{Kind: KindUnavailable, Message: "Yapay zeka servisine ulaşılamadı", Err: err}
}

func malformed(err error) *ExtractionError {
	return &ExtractionError{Kind: KindMalformed, Message: "Yapay zeka yanıtı okunamadı", Err: err}
}

func declined(reason string) *ExtractionError {
	msg := "Fotoğrafta ruhsat bulunamadı"
	if reason != "" {
		msg = msg + " (" + reason + ")"
	}
	return &ExtractionError{Kind: KindDeclined, Message: msg}
}

func invalid(msg string) *ExtractionError {
	return &ExtractionError{Kind: KindInvalid, Message: msg}
}
