package inference

import "errors"

// Step failures fall into three classes. InvalidRequest is rejected before
// the scorer runs; ScorerUnavailable is retryable; NumericAnomaly means the
// backend produced non-finite logits and the step is void. In every case
// nothing is appended to any trace.
var (
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrScorerUnavailable = errors.New("scorer_unavailable")
	ErrNumericAnomaly    = errors.New("numeric_anomaly")
)

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string { return e.msg }

func (e invalidRequestError) Unwrap() error { return ErrInvalidRequest }

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

type scorerUnavailableError struct {
	err error
}

func (e scorerUnavailableError) Error() string { return "scorer: " + e.err.Error() }

func (e scorerUnavailableError) Unwrap() []error { return []error{ErrScorerUnavailable, e.err} }

type numericAnomalyError struct {
	err error
}

func (e numericAnomalyError) Error() string { return "logits: " + e.err.Error() }

func (e numericAnomalyError) Unwrap() []error { return []error{ErrNumericAnomaly, e.err} }
