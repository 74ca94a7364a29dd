package session

import "fmt"

// FailureKind classifies fatal load failures. Non-fatal conditions (TOC
// unavailable, navigation failures) are absorbed and logged, never surfaced
// as a failure state.
type FailureKind int

const (
	// FailureInvalidSource means the source could not be interpreted at all.
	FailureInvalidSource FailureKind = iota
	// FailureFetch means the remote transfer failed.
	FailureFetch
	// FailureOpen means the document engine rejected the local file.
	FailureOpen
)

func (k FailureKind) String() string {
	switch k {
	case FailureInvalidSource:
		return "invalid source"
	case FailureFetch:
		return "download failed"
	case FailureOpen:
		return "could not open document"
	default:
		return "unknown failure"
	}
}

// LoadError is the single error type a failed session carries. It is
// surfaced to the user as a message with a close affordance; nothing is
// retried automatically.
type LoadError struct {
	Kind   FailureKind
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Source)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Message is the human-readable description shown in the failure view.
func (e *LoadError) Message() string {
	switch e.Kind {
	case FailureInvalidSource:
		return fmt.Sprintf("%q is not a readable source.", e.Source)
	case FailureFetch:
		return fmt.Sprintf("Could not download %s.", e.Source)
	case FailureOpen:
		return fmt.Sprintf("Could not open %s.", e.Source)
	default:
		return e.Error()
	}
}
