// Package resilience provides bounded retry with backoff for registry calls.
//
// The registration state machine and the HTTP transport both retry through
// this package. Backoff is a pure function of the attempt count: fixed when
// BackoffFactor is 1, exponential otherwise, with optional jitter.
//
//	cfg := resilience.FixedRetryConfig(3, 2*time.Second)
//	err := resilience.RetryFunc(ctx, cfg, func() error { return register() })
package resilience
