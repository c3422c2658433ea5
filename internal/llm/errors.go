package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go"
)

// ErrorKind classifies a failed model call.
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "timeout"
	ErrAuth            ErrorKind = "auth"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrTransport       ErrorKind = "transport"
)

// ModelError is the typed failure returned by Client.Complete. Callers that
// continue past a failed participant use Kind to decide how to report it.
type ModelError struct {
	Kind  ErrorKind
	Model string // display name of the model that failed
	Err   error  // underlying cause, may be nil for InvalidResponse
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Model, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Model, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// classify maps an openai-go / transport error onto the ModelError taxonomy.
func classify(model string, err error) *ModelError {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 401, 403:
			return &ModelError{Kind: ErrAuth, Model: model, Err: err}
		case 429:
			return &ModelError{Kind: ErrRateLimited, Model: model, Err: err}
		case 408, 504:
			return &ModelError{Kind: ErrTimeout, Model: model, Err: err}
		default:
			return &ModelError{Kind: ErrTransport, Model: model, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ModelError{Kind: ErrTimeout, Model: model, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &ModelError{Kind: ErrTimeout, Model: model, Err: err}
	}

	return &ModelError{Kind: ErrTransport, Model: model, Err: err}
}
