package wizard

import "errors"

// ErrorKind classifies a pipeline failure so the presentation layer can
// decide between redirecting to sign-up, showing a retryable message,
// or pointing at the pricing page.  No raw transport error leaves this
// package unclassified.
type ErrorKind string

const (
	KindNotAuthenticated    ErrorKind = "not_authenticated"
	KindIncompleteSelection ErrorKind = "incomplete_selection"
	KindStorage             ErrorKind = "storage_error"
	KindRecordCreation      ErrorKind = "record_creation_error"
	KindRequestCreation     ErrorKind = "request_creation_error"
	KindGeneration          ErrorKind = "generation_error"
	KindNetwork             ErrorKind = "network_error"
	KindAuth                ErrorKind = "auth_error"
)

// PipelineError is the typed failure every pipeline stage converts its
// errors into.  Message is user-presentable; Err carries the cause for
// logs and errors.Is/As chains.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsKind reports whether err is a PipelineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == kind
}

// ErrPipelineBusy is returned when Run is called while another pipeline
// invocation is still in flight.
var ErrPipelineBusy = errors.New("generation pipeline already in flight")

// classify wraps err as a PipelineError of the given kind.  Transport
// failures that the collaborator client already classified as network
// or auth problems pass through untouched; they are meaningful at any
// stage.
func classify(kind ErrorKind, msg string, err error) error {
	var pe *PipelineError
	if errors.As(err, &pe) && (pe.Kind == KindNetwork || pe.Kind == KindAuth) {
		return pe
	}
	return &PipelineError{Kind: kind, Message: msg, Err: err}
}
