package httpclient

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"

	"github.com/nacos-group/nacos-serving-go/errors"
)

// classifyTransportError converts wire-level failures into typed errors.
func classifyTransportError(baseURL string, err error) error {
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Timeout("registry request").WithCause(err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Timeout("registry request").WithCause(err)
	}

	return errors.ConnectionFailed(baseURL).WithCause(err)
}

// classifyStatusError converts non-2xx responses into typed errors.
func classifyStatusError(resp *Response) error {
	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NotFound("resource", "").WithDetail("body", resp.String())
	case http.StatusBadRequest:
		return errors.InvalidInput("", resp.String())
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return errors.Unavailable("registry request").WithDetail("status", resp.StatusCode)
	default:
		return errors.RegistryError(resp.StatusCode, resp.String())
	}
}
