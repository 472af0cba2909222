package providers

import (
	"context"
	"errors"
)

var (
	// ErrStreamClosed is returned by emitters once a terminal event was sent
	ErrStreamClosed = errors.New("progress stream already closed")

	// ErrClientGone is returned when the subscriber disconnected
	ErrClientGone = errors.New("progress stream client disconnected")
)

// ProgressEmitter relays ordered progress of one job to one subscriber and
// ends with exactly one Complete or Fail.
type ProgressEmitter interface {
	Progress(ctx context.Context, step string, progress int, message string, data interface{}) error
	Complete(ctx context.Context, data interface{}) error
	Fail(ctx context.Context, message string) error
}
