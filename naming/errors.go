package naming

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/nacos-group/nacos-serving-go/errors"
)

// Public error conditions of the naming client.
var (
	// ErrServiceNotFound means the registry has no such service. Not
	// retried automatically.
	ErrServiceNotFound = stderrors.New("naming: service not found")

	// ErrUnavailable means a transport call timed out or the registry is
	// unreachable.
	ErrUnavailable = stderrors.New("naming: registry unavailable")

	// ErrNoAvailableInstance means a table resolved but no eligible
	// instance remained after filtering.
	ErrNoAvailableInstance = stderrors.New("naming: no available instance")

	// ErrRegisterFailed means registration retries were exhausted. The
	// process keeps running but is not discoverable.
	ErrRegisterFailed = stderrors.New("naming: registration failed")

	// ErrShutdownTimedOut means graceful deregistration did not complete
	// within the shutdown budget. Deregistration is best-effort.
	ErrShutdownTimedOut = stderrors.New("naming: graceful shutdown timed out")

	// ErrClientClosed is returned by operations on a shut-down client.
	ErrClientClosed = stderrors.New("naming: client closed")
)

// classifyTransportErr maps transport error codes onto the package's
// sentinel errors, preserving the original chain.
func classifyTransportErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.HasCode(err, errors.ErrCodeNotFound):
		return fmt.Errorf("%w: %s: %v", ErrServiceNotFound, op, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	case errors.HasCode(err, errors.ErrCodeTimeout),
		errors.HasCode(err, errors.ErrCodeConnectionFailed),
		errors.HasCode(err, errors.ErrCodeUnavailable),
		errors.HasCode(err, errors.ErrCodeRegistryError):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	default:
		return fmt.Errorf("naming: %s: %w", op, err)
	}
}
