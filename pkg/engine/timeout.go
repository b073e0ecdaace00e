package engine

import (
	"context"
	"fmt"
	"time"
)

// waitWithTimeout waits for the script result on ch, giving up when d
// elapses or ctx is done. The sending goroutine may still be running when
// this returns; ch must be buffered so it never blocks.
func waitWithTimeout(ctx context.Context, ch <-chan error, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-ch:
		return err
	case <-timer.C:
		return &ExecutionError{
			Message: fmt.Sprintf("execution timed out after %s", d),
			Err:     ErrTimeout,
		}
	case <-ctx.Done():
		return &ExecutionError{
			Message: fmt.Sprintf("execution cancelled: %v", ctx.Err()),
			Err:     ctx.Err(),
		}
	}
}
