// Package observability initializes OpenTelemetry metrics for the naming
// client.
//
// InitMeter wires an OTLP HTTP exporter into the global meter provider;
// the naming package creates its instruments through Meter. Applications
// that already manage their own meter provider can skip InitMeter entirely,
// instruments then bind to whatever global provider is installed.
package observability
