package flow

import (
	"context"

	"github.com/pkg/errors"
)

var NotSent = errors.New("value not sent")

// NonBlockingSend delivers sendValue only if a receiver (or buffer slot) is ready right now.
func NonBlockingSend[T any](ctx context.Context, sendChan chan<- T, sendValue T) error {
	select {
	case <-ctx.Done():
		return context.Canceled

	case sendChan <- sendValue:
		return nil

	default:
		return NotSent
	}
}

// Report pushes err to errChan without ever blocking the caller. Errors nobody is listening
// for are dropped; callers log them before reporting.
func Report(errChan chan<- error, err error) {
	if err == nil {
		return
	}

	_ = NonBlockingSend(context.Background(), errChan, err)
}
