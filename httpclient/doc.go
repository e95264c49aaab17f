// Package httpclient provides a small configurable HTTP client used by the
// nacos open-api transport.
//
// It layers base-URL handling, query/form encoding, JSON decoding, typed
// error classification and bounded retry on top of net/http. Registry
// responses with non-2xx status codes surface as *errors.AppError values
// carrying a machine-readable code, which the naming package maps onto its
// sentinel errors.
package httpclient
