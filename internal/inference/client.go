// Package inference is the boundary between the extraction core and hosted
// model backends. The core only sees Client.Invoke and the TRANSIENT /
// PERMANENT error kinds; provider details stay behind Backend.
package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/agenthands/uidn/internal/core/model"
)

type Payload struct {
	Prompt string
	Text   string
	Media  *model.MediaRef
}

type RawOutput struct {
	Text       string
	Transcript string
	Model      string
}

// Options are per-call settings forwarded by a processor.
type Options struct {
	Attempt int
}

type Client interface {
	Invoke(ctx context.Context, modality model.Modality, payload Payload, opts Options) (RawOutput, error)
}

// Func adapts a plain function to Client.
type Func func(ctx context.Context, modality model.Modality, payload Payload, opts Options) (RawOutput, error)

func (f Func) Invoke(ctx context.Context, modality model.Modality, payload Payload, opts Options) (RawOutput, error) {
	return f(ctx, modality, payload, opts)
}

type Kind string

const (
	Transient Kind = "TRANSIENT"
	Permanent Kind = "PERMANENT"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("inference %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func TransientError(msg string, err error) *Error {
	return &Error{Kind: Transient, Message: msg, Err: err}
}

func PermanentError(msg string, err error) *Error {
	return &Error{Kind: Permanent, Message: msg, Err: err}
}

// IsTransient reports whether err is retryable. Untyped errors are treated as
// permanent.
func IsTransient(err error) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind == Transient
	}
	return false
}
